package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// maxLoggedStderr caps how much tool output lands in one log line.
const maxLoggedStderr = 8 << 10

// execRunner runs poppler and tesseract. timeout bounds a single command,
// so one stuck page cannot eat the whole per-file budget.
type execRunner struct {
	logger  *slog.Logger
	timeout time.Duration
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	switch {
	case errors.Is(err, exec.ErrNotFound):
		err = fmt.Errorf("ocr tool %q is not installed: %w", name, err)
	case err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("ocr tool %q timed out after %s: %w", name, dur.Round(time.Millisecond), context.DeadlineExceeded)
	}

	if err != nil {
		r.logger.Error("ocr.exec.failed",
			"tool", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), maxLoggedStderr),
		)
	} else {
		r.logger.Debug("ocr.exec.ok",
			"tool", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"stdout_bytes", out.Len(),
			"stderr_bytes", errb.Len(),
		)
	}

	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "...(truncated)"
}
