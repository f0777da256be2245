package scan

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const writeReport = `out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; shift; fi
  shift
done
`

func fakeBandit(t *testing.T, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell fake needs a POSIX sh")
	}

	path := filepath.Join(t.TempDir(), "bandit")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))

	return path
}

func TestBanditScanner_Run(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"clean tree", writeReport + `printf '{"results": []}' > "$out"` + "\nexit 0\n", false},
		{"issues found", writeReport + `printf '{"results": [{"issue_severity": "HIGH"}]}' > "$out"` + "\nexit 1\n", false},
		{"crash", writeReport + "echo boom >&2\nexit 2\n", true},
		{"exit 1 without report", "exit 1\n", true},
		{"empty report", writeReport + `: > "$out"` + "\nexit 0\n", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := &BanditScanner{Path: fakeBandit(t, tc.body)}
			report := filepath.Join(t.TempDir(), "report.json")

			err := s.Run(context.Background(), t.TempDir(), report)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrAnalyzer)
				return
			}
			require.NoError(t, err)
			assert.FileExists(t, report)
		})
	}
}

func TestBanditScanner_Timeout(t *testing.T) {
	t.Parallel()

	s := &BanditScanner{Path: fakeBandit(t, "exec sleep 5\n"), Timeout: 100 * time.Millisecond}

	start := time.Now()
	err := s.Run(context.Background(), t.TempDir(), filepath.Join(t.TempDir(), "r.json"))
	require.ErrorIs(t, err, ErrAnalyzer)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestBanditScanner_RemovesStaleReport(t *testing.T) {
	t.Parallel()

	report := filepath.Join(t.TempDir(), "r.json")
	require.NoError(t, os.WriteFile(report, []byte(`{"results": []}`), 0o644))

	s := &BanditScanner{Path: fakeBandit(t, "exit 0\n")}
	err := s.Run(context.Background(), t.TempDir(), report)
	require.ErrorIs(t, err, ErrAnalyzer)
}

func TestBanditScanner_MissingBinary(t *testing.T) {
	t.Parallel()

	s := &BanditScanner{Path: filepath.Join(t.TempDir(), "nope")}
	err := s.Run(context.Background(), t.TempDir(), filepath.Join(t.TempDir(), "r.json"))
	require.ErrorIs(t, err, ErrAnalyzer)
}
