package services

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/lockwhz/secregress/internal/pipeline"
)

// ProgressManager draws one progress bar per repository run.
type ProgressManager struct {
	writer io.Writer
}

// NewProgressManager returns a bar-drawing Progress when enabled and stderr
// is a terminal, and a no-op one otherwise.
func NewProgressManager(enabled bool) pipeline.Progress {
	if enabled && isTerminal(os.Stderr) {
		return &ProgressManager{writer: os.Stderr}
	}
	return pipeline.NoOpProgress{}
}

func (pm *ProgressManager) StartTask(description string, total int) pipeline.TaskProgress {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(pm.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(24),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
	)
	return &taskProgress{bar: bar}
}

type taskProgress struct {
	bar *progressbar.ProgressBar
}

func (tp *taskProgress) Increment(n int)             { _ = tp.bar.Add(n) }
func (tp *taskProgress) Describe(description string) { tp.bar.Describe(description) }
func (tp *taskProgress) Complete()                   { _ = tp.bar.Finish() }

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
