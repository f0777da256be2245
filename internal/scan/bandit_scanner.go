package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/lockwhz/secregress/internal/logger"
)

const maxOutputInError = 512

// BanditScanner runs `bandit -r <dir> -f json -o <report>`.
type BanditScanner struct {
	Path    string        // bandit binary.
	Timeout time.Duration // Per-run limit; zero disables it.
	Args    []string      // Extra flags, e.g. --skip B101.
}

func (s *BanditScanner) Run(ctx context.Context, dir, reportPath string) error {
	start := time.Now()
	defer logger.Trace("RunBandit", start)

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	// A stale file would be taken for this run's output.
	if err := os.Remove(reportPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove stale report: %v", ErrAnalyzer, err)
	}

	args := append([]string{"-r", dir, "-f", "json", "-o", reportPath, "-q"}, s.Args...)
	cmd := exec.CommandContext(ctx, s.Path, args...)
	output, err := cmd.CombinedOutput()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ErrAnalyzer, ctxErr)
	}
	if err != nil {
		// bandit exits 1 when it reports issues; the report is still complete.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
			return fmt.Errorf("%w: bandit: %v, output: %s", ErrAnalyzer, err, truncate(output))
		}
	}

	info, err := os.Stat(reportPath)
	if err != nil {
		return fmt.Errorf("%w: report not written: %v, output: %s", ErrAnalyzer, err, truncate(output))
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: empty report", ErrAnalyzer)
	}
	return nil
}

func truncate(b []byte) string {
	if len(b) > maxOutputInError {
		return string(b[:maxOutputInError]) + "..."
	}
	return string(b)
}
