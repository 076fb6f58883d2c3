// Package smoke dispatches CI workflows against a given sync endpoint and
// waits for their results.
package smoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Run struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	HeadBranch string    `json:"head_branch"`
	HTMLURL    string    `json:"html_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// State renders "status" or "status:conclusion".
func (r Run) State() string {
	if r.Conclusion == "" {
		return r.Status
	}
	return r.Status + ":" + r.Conclusion
}

func (r Run) Completed() bool { return r.Status == "completed" }

type Job struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
}

// GitHub is a small client for the Actions REST API.
type GitHub struct {
	BaseURL string
	Repo    string // owner/name
	Token   string
	HTTP    *http.Client
}

func (g *GitHub) Dispatch(ctx context.Context, workflow, ref string, inputs map[string]string) error {
	body := map[string]any{"ref": ref, "inputs": inputs}
	return g.do(ctx, http.MethodPost, "/actions/workflows/"+url.PathEscape(workflow)+"/dispatches", body, nil)
}

// Runs lists the most recent runs of a workflow, newest first.
func (g *GitHub) Runs(ctx context.Context, workflow, branch string, limit int) ([]Run, error) {
	q := url.Values{}
	q.Set("per_page", fmt.Sprint(limit))
	if branch != "" {
		q.Set("branch", branch)
	}
	q.Set("event", "workflow_dispatch")
	var out struct {
		WorkflowRuns []Run `json:"workflow_runs"`
	}
	err := g.do(ctx, http.MethodGet, "/actions/workflows/"+url.PathEscape(workflow)+"/runs?"+q.Encode(), nil, &out)
	return out.WorkflowRuns, err
}

func (g *GitHub) Run(ctx context.Context, id int64) (Run, error) {
	var r Run
	err := g.do(ctx, http.MethodGet, fmt.Sprintf("/actions/runs/%d", id), nil, &r)
	return r, err
}

func (g *GitHub) Jobs(ctx context.Context, id int64) ([]Job, error) {
	var out struct {
		Jobs []Job `json:"jobs"`
	}
	err := g.do(ctx, http.MethodGet, fmt.Sprintf("/actions/runs/%d/jobs", id), nil, &out)
	return out.Jobs, err
}

func (g *GitHub) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	base := strings.TrimRight(g.BaseURL, "/")
	if base == "" {
		base = "https://api.github.com"
	}
	req, err := http.NewRequestWithContext(ctx, method, base+"/repos/"+g.Repo+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	hc := g.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("github: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("github: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("github: decode: %w", err)
	}
	return nil
}
