package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lockwhz/secregress/models"
)

const (
	configName = ".secregress"
	configType = "yaml"
	envPrefix  = "SECREGRESS"
)

// Defaults.
const (
	DefaultCommits         = 100
	DefaultWorkDir         = "repos"
	DefaultReportsDir      = "reports"
	DefaultOutputDir       = "vulnerability_analysis_results"
	DefaultAnalyzerPath    = "bandit"
	DefaultAnalyzerTimeout = 10 * time.Minute
	DefaultParallelRepos   = 1
	DefaultPGPort          = "5432"
	DefaultSQSWorkers      = 1
	DefaultSQSWaitSeconds  = 20
)

var (
	ErrNoRepositories   = errors.New("no repositories configured")
	ErrInvalidRepo      = errors.New("invalid repository")
	ErrDuplicateRepo    = errors.New("duplicate repository name")
	ErrInvalidCommits   = errors.New("commits must be positive")
	ErrNoAnalyzer       = errors.New("analyzer path is required")
	ErrInvalidTimeout   = errors.New("analyzer timeout must not be negative")
	ErrInvalidParallel  = errors.New("parallel_repos must be positive")
	ErrMissingQueueURL  = errors.New("sqs.queue_url is required when sqs is enabled")
	ErrMissingPGSetting = errors.New("postgres host and name are required when postgres is enabled")
)

type Config struct {
	Repositories  []models.Repository `mapstructure:"repositories"`
	Commits       int                 `mapstructure:"commits"`        // History window per repository.
	Ref           string              `mapstructure:"ref"`            // Revision the window starts from; HEAD when empty.
	WorkDir       string              `mapstructure:"work_dir"`       // Working trees, one per repository.
	ReportsDir    string              `mapstructure:"reports_dir"`    // Raw analyzer reports.
	OutputDir     string              `mapstructure:"output_dir"`     // Summary CSVs and charts.
	Clone         bool                `mapstructure:"clone"`          // Clone missing working trees.
	ParallelRepos int                 `mapstructure:"parallel_repos"` // Repositories analyzed at once.
	Chronological bool                `mapstructure:"chronological"`  // Order summaries oldest-first by history position.
	Progress      bool                `mapstructure:"progress"`

	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQS      SQSConfig      `mapstructure:"sqs"`
	Log      LogConfig      `mapstructure:"log"`

	EnableVault   bool   `mapstructure:"enable_vault"`           // GitHub credentials from the environment for clones.
	EnableSecrets bool   `mapstructure:"enable_secrets_manager"` // Postgres password from AWS Secrets Manager.
	DBSecretID    string `mapstructure:"db_secret_id"`
	AWSRegion     string `mapstructure:"aws_region"`
}

type AnalyzerConfig struct {
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
	Args    []string      `mapstructure:"args"`
}

type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

type SQSConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	QueueURL    string `mapstructure:"queue_url"`
	Workers     int    `mapstructure:"workers"`
	WaitSeconds int32  `mapstructure:"wait_seconds"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
	Env   string `mapstructure:"env"`
}

// DefaultRepositories is the study set used when nothing is configured.
func DefaultRepositories() []models.Repository {
	return []models.Repository{
		{Name: "music-dl", URL: "https://github.com/0xhjk/music-dl"},
		{Name: "ChatTTS", URL: "https://github.com/2noise/ChatTTS"},
		{Name: "llama-cpp-python", URL: "https://github.com/abetlen/llama-cpp-python"},
	}
}

// Load reads defaults, then the config file, then SECREGRESS_* variables.
// An empty path searches .secregress.yaml in the working directory and $HOME;
// a missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Repositories) == 0 {
		cfg.Repositories = DefaultRepositories()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("commits", DefaultCommits)
	v.SetDefault("ref", "")
	v.SetDefault("work_dir", DefaultWorkDir)
	v.SetDefault("reports_dir", DefaultReportsDir)
	v.SetDefault("output_dir", DefaultOutputDir)
	v.SetDefault("clone", true)
	v.SetDefault("parallel_repos", DefaultParallelRepos)
	v.SetDefault("chronological", false)
	v.SetDefault("progress", true)

	v.SetDefault("analyzer.path", DefaultAnalyzerPath)
	v.SetDefault("analyzer.timeout", DefaultAnalyzerTimeout)
	v.SetDefault("analyzer.args", []string{})

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.host", "")
	v.SetDefault("postgres.port", DefaultPGPort)
	v.SetDefault("postgres.name", "")
	v.SetDefault("postgres.user", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("sqs.enabled", false)
	v.SetDefault("sqs.queue_url", "")
	v.SetDefault("sqs.workers", DefaultSQSWorkers)
	v.SetDefault("sqs.wait_seconds", DefaultSQSWaitSeconds)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.env", "production")

	v.SetDefault("enable_vault", false)
	v.SetDefault("enable_secrets_manager", false)
	v.SetDefault("db_secret_id", "")
	v.SetDefault("aws_region", "")
}

func (c Config) Validate() error {
	if len(c.Repositories) == 0 {
		return ErrNoRepositories
	}
	seen := make(map[string]struct{}, len(c.Repositories))
	for _, r := range c.Repositories {
		if err := ValidateRepository(r); err != nil {
			return err
		}
		if _, ok := seen[r.Name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateRepo, r.Name)
		}
		seen[r.Name] = struct{}{}
	}
	if c.Commits <= 0 {
		return ErrInvalidCommits
	}
	if c.ParallelRepos <= 0 {
		return ErrInvalidParallel
	}
	if c.Analyzer.Path == "" {
		return ErrNoAnalyzer
	}
	if c.Analyzer.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if c.SQS.Enabled && c.SQS.QueueURL == "" {
		return ErrMissingQueueURL
	}
	if c.Postgres.Enabled && (c.Postgres.Host == "" || c.Postgres.Name == "") {
		return ErrMissingPGSetting
	}
	return nil
}

// ValidateRepository checks that the name is usable as a single path segment.
func ValidateRepository(r models.Repository) error {
	switch {
	case r.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidRepo)
	case r.URL == "":
		return fmt.Errorf("%w: %s has no url", ErrInvalidRepo, r.Name)
	case r.Name == "." || r.Name == ".." || strings.ContainsAny(r.Name, `/\`) || filepath.Base(r.Name) != r.Name:
		return fmt.Errorf("%w: %q is not a plain name", ErrInvalidRepo, r.Name)
	}
	return nil
}

// RepoDir is the working tree of a repository.
func (c Config) RepoDir(name string) string {
	return filepath.Join(c.WorkDir, name)
}

// SummaryPath is the per-repository summary CSV.
func (c Config) SummaryPath(name string) string {
	return filepath.Join(c.OutputDir, name+"_summary.csv")
}

// CombinedPath is the cross-repository summary CSV.
func (c Config) CombinedPath() string {
	return filepath.Join(c.OutputDir, "combined_summary.csv")
}

func (c Config) PostgresConnString() string {
	// Example: "host=localhost port=5432 dbname=mydb user=myuser password=mypass sslmode=disable"
	p := c.Postgres
	return "host=" + p.Host + " port=" + p.Port + " dbname=" + p.Name + " user=" + p.User + " password=" + p.Password + " sslmode=" + p.SSLMode
}
