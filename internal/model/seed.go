package model

import (
	"fmt"
	"strings"
	"time"
)

const seedPrefix = "github_test_"

// SeedID builds the document ID CI jobs use for the document they insert,
// e.g. github_test_android_8812345_42.
func SeedID(label, runID, runNumber string) string {
	label = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(label), " ", "-"))
	if runID == "" {
		runID = fmt.Sprintf("%d", time.Now().Unix())
	}
	if runNumber == "" {
		runNumber = "0"
	}
	return fmt.Sprintf("%s%s_%s_%s", seedPrefix, label, runID, runNumber)
}

// RunTag extracts the run identifier embedded in a seeded document ID. For
// github_test_<label>_<runID>_<runNumber> that is the runID, which stays
// unique across workflows; any other ID yields its last field.
func RunTag(docID string) string {
	parts := strings.Split(docID, "_")
	if strings.HasPrefix(docID, seedPrefix) && len(parts) >= 5 {
		return parts[len(parts)-2]
	}
	return parts[len(parts)-1]
}

// SeedTitle is the text an app must render once the seeded document synced.
func SeedTitle(label, runTag string) string {
	return fmt.Sprintf("GitHub %s Test %s", strings.TrimSpace(label), runTag)
}

// SeedTask assembles the seeded document for a label and document ID.
func SeedTask(label, docID string) Task {
	return Task{ID: docID, Title: SeedTitle(label, RunTag(docID))}
}
