package scan

import (
	"context"
	"errors"
)

// ErrAnalyzer wraps every analyzer failure: non-zero exit, crash, timeout or
// missing report.
var ErrAnalyzer = errors.New("analyzer failed")

// Scanner runs the external analyzer over dir and writes its raw JSON report
// to reportPath.
type Scanner interface {
	Run(ctx context.Context, dir, reportPath string) error
}
