package cli

import (
	"context"
	"mime"
	"os"
	"path/filepath"

	"github.com/Makepad-fr/syncprobe/internal/ui"
)

// doUpload stores build outputs (APKs, IPAs, bundles) next to the run's
// failure artifacts.
func doUpload(ctx context.Context, opt Options, args []string) int {
	fs := newFlags("upload")
	prefix := fs.String("prefix", opt.Config.CI.RunID, "object key prefix in the bucket")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	if fs.NArg() == 0 {
		return usage("upload [-prefix P] <file...>")
	}

	sink := openSink(ctx, opt, *prefix)
	code := exitOK
	for _, p := range fs.Args() {
		data, err := os.ReadFile(p)
		if err != nil {
			ui.Fail("upload: " + err.Error())
			code = exitFailure
			continue
		}
		ct := mime.TypeByExtension(filepath.Ext(p))
		if ct == "" {
			ct = "application/octet-stream"
		}
		loc, err := sink.Put(ctx, filepath.Base(p), data, ct)
		if err != nil {
			ui.Fail("upload " + p + ": " + err.Error())
			code = exitFailure
			continue
		}
		ui.OK("uploaded " + loc)
	}
	return code
}
