package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockwhz/secregress/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "secregress.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
repositories:
  - name: alpha
    url: https://example.com/alpha.git
  - name: beta
    url: /srv/git/beta
commits: 25
chronological: true
parallel_repos: 2
analyzer:
  path: /opt/bandit/bin/bandit
  timeout: 90s
  args: ["--skip", "B101"]
postgres:
  enabled: true
  host: db
  name: study
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []models.Repository{
		{Name: "alpha", URL: "https://example.com/alpha.git"},
		{Name: "beta", URL: "/srv/git/beta"},
	}, cfg.Repositories)
	assert.Equal(t, 25, cfg.Commits)
	assert.True(t, cfg.Chronological)
	assert.Equal(t, 2, cfg.ParallelRepos)
	assert.Equal(t, "/opt/bandit/bin/bandit", cfg.Analyzer.Path)
	assert.Equal(t, 90*time.Second, cfg.Analyzer.Timeout)
	assert.Equal(t, []string{"--skip", "B101"}, cfg.Analyzer.Args)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, DefaultPGPort, cfg.Postgres.Port)
	assert.Equal(t, "host=db port=5432 dbname=study user= password= sslmode=disable", cfg.PostgresConnString())
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("SECREGRESS_COMMITS", "7")
	t.Setenv("SECREGRESS_ANALYZER_TIMEOUT", "2m")
	t.Setenv("SECREGRESS_OUTPUT_DIR", "/tmp/out")

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultRepositories(), cfg.Repositories)
	assert.Equal(t, 7, cfg.Commits)
	assert.Equal(t, 2*time.Minute, cfg.Analyzer.Timeout)
	assert.Equal(t, "/tmp/out", cfg.OutputDir)
	assert.Equal(t, filepath.Join("/tmp/out", "combined_summary.csv"), cfg.CombinedPath())
	assert.Equal(t, filepath.Join("/tmp/out", "ChatTTS_summary.csv"), cfg.SummaryPath("ChatTTS"))
	assert.Equal(t, filepath.Join(DefaultWorkDir, "ChatTTS"), cfg.RepoDir("ChatTTS"))
}

func TestLoad_InvalidFile(t *testing.T) {
	_, err := Load(writeConfig(t, "commits: [\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Repositories:  []models.Repository{{Name: "a", URL: "u"}},
			Commits:       1,
			ParallelRepos: 1,
			Analyzer:      AnalyzerConfig{Path: "bandit"},
		}
	}

	require.NoError(t, valid().Validate())

	cases := map[string]struct {
		mutate func(*Config)
		want   error
	}{
		"no repositories": {func(c *Config) { c.Repositories = nil }, ErrNoRepositories},
		"duplicate": {func(c *Config) {
			c.Repositories = append(c.Repositories, models.Repository{Name: "a", URL: "v"})
		}, ErrDuplicateRepo},
		"path name":       {func(c *Config) { c.Repositories[0].Name = "../etc" }, ErrInvalidRepo},
		"missing url":     {func(c *Config) { c.Repositories[0].URL = "" }, ErrInvalidRepo},
		"zero commits":    {func(c *Config) { c.Commits = 0 }, ErrInvalidCommits},
		"zero parallel":   {func(c *Config) { c.ParallelRepos = 0 }, ErrInvalidParallel},
		"no analyzer":     {func(c *Config) { c.Analyzer.Path = "" }, ErrNoAnalyzer},
		"negative limit":  {func(c *Config) { c.Analyzer.Timeout = -time.Second }, ErrInvalidTimeout},
		"sqs without url": {func(c *Config) { c.SQS.Enabled = true }, ErrMissingQueueURL},
		"pg without host": {func(c *Config) { c.Postgres.Enabled = true }, ErrMissingPGSetting},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), tc.want)
		})
	}
}
