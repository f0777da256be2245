package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lockwhz/secregress/config"
	"github.com/lockwhz/secregress/internal/chart"
	"github.com/lockwhz/secregress/internal/db"
	"github.com/lockwhz/secregress/internal/git"
	"github.com/lockwhz/secregress/internal/logger"
	"github.com/lockwhz/secregress/internal/pipeline"
	"github.com/lockwhz/secregress/internal/scan"
	"github.com/lockwhz/secregress/internal/secrets"
	"github.com/lockwhz/secregress/internal/services"
	"github.com/lockwhz/secregress/internal/store"
	"github.com/lockwhz/secregress/internal/summary"
	"github.com/lockwhz/secregress/internal/vault"
	"github.com/lockwhz/secregress/models"
)

var errUnknownRepository = errors.New("repository not configured")

// app holds what every subcommand needs once the config is loaded.
type app struct {
	cfg config.Config
	log *zap.SugaredLogger
}

func loadApp(opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := logger.Init(logger.Options{Level: cfg.Log.Level, FilePath: cfg.Log.File, Env: cfg.Log.Env}); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &app{cfg: cfg, log: logger.GetSugaredLogger()}, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// newRunner wires the production collaborators. The returned cleanup closes
// the database when one was opened.
func (a *app) newRunner(ctx context.Context) (*pipeline.Runner, func(), error) {
	var creds vault.CredentialProvider = &vault.NoOpProvider{}
	if a.cfg.EnableVault {
		creds = &vault.EnvProvider{}
	}

	runner := &pipeline.Runner{
		Config: a.cfg,
		Git:    &git.GoGitClient{Vault: creds},
		Scanner: &scan.BanditScanner{
			Path:    a.cfg.Analyzer.Path,
			Timeout: a.cfg.Analyzer.Timeout,
			Args:    a.cfg.Analyzer.Args,
		},
		Store:    &store.FileStore{Root: a.cfg.ReportsDir},
		Progress: services.NewProgressManager(a.cfg.Progress),
		Log:      a.log,
	}

	if !a.cfg.Postgres.Enabled {
		return runner, func() {}, nil
	}
	sink, closeDB, err := a.openSummaryStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	runner.Sink = sink
	return runner, closeDB, nil
}

func (a *app) openSummaryStore(ctx context.Context) (*db.RDSStore, func(), error) {
	password, err := a.databasePassword(ctx)
	if err != nil {
		return nil, nil, err
	}
	cfg := a.cfg
	cfg.Postgres.Password = password

	database := db.NewDatabase()
	conn, err := database.Connect(ctx, cfg.PostgresConnString())
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	rds := &db.RDSStore{DB: conn}
	if err := rds.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, nil, err
	}
	return rds, func() {
		if err := database.Close(); err != nil {
			a.log.Warnw("close postgres", "error", err)
		}
	}, nil
}

func (a *app) databasePassword(ctx context.Context) (string, error) {
	if a.cfg.EnableSecrets {
		awsCfg, err := a.awsConfig(ctx)
		if err != nil {
			return "", err
		}
		return secrets.NewAWSSecretsManager(awsCfg).GetSecret(ctx, a.cfg.DBSecretID)
	}
	if a.cfg.Postgres.Password != "" {
		return a.cfg.Postgres.Password, nil
	}
	env := &secrets.EnvSecretsManager{}
	password, err := env.GetSecret(ctx, "PG_PASSWORD")
	if err != nil {
		a.log.Warnw("no postgres password configured", "error", err)
		return "", nil
	}
	return password, nil
}

func (a *app) awsConfig(ctx context.Context) (aws.Config, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if a.cfg.AWSRegion != "" {
		optFns = append(optFns, awsconfig.WithRegion(a.cfg.AWSRegion))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// selectRepositories narrows the configured set to names, keeping config order.
func selectRepositories(all []models.Repository, names []string) ([]models.Repository, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]models.Repository, len(all))
	for _, r := range all {
		byName[r.Name] = r
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := byName[n]; !ok {
			return nil, fmt.Errorf("%w: %s", errUnknownRepository, n)
		}
		want[n] = true
	}
	var out []models.Repository
	for _, r := range all {
		if want[r.Name] {
			out = append(out, r)
		}
	}
	return out, nil
}

type runFlags struct {
	commits       int
	parallel      int
	chronological bool
	charts        bool
}

func (f *runFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.commits, "commits", "n", 0, "commits per repository (overrides config)")
	cmd.Flags().IntVarP(&f.parallel, "parallel", "p", 0, "repositories analyzed at once (overrides config)")
	cmd.Flags().BoolVar(&f.chronological, "chronological", false, "order summaries oldest first")
	cmd.Flags().BoolVar(&f.charts, "charts", false, "write HTML charts after summarizing")
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("commits") {
		cfg.Commits = f.commits
	}
	if cmd.Flags().Changed("parallel") {
		cfg.ParallelRepos = f.parallel
	}
	if cmd.Flags().Changed("chronological") {
		cfg.Chronological = f.chronological
	}
	return cfg.Validate()
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [repository...]",
		Short: "Analyze recent history and write summary CSVs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if err := flags.apply(cmd, &a.cfg); err != nil {
				return err
			}
			if a.cfg.Repositories, err = selectRepositories(a.cfg.Repositories, args); err != nil {
				return err
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			runner, cleanup, err := a.newRunner(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			combined, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			return a.report(cmd, combined, flags.charts)
		},
	}
	flags.bind(cmd)
	return cmd
}

func newAggregateCommand(opts *rootOptions) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "aggregate [repository...]",
		Short: "Rebuild summaries from stored reports without running the analyzer",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if err := flags.apply(cmd, &a.cfg); err != nil {
				return err
			}
			if a.cfg.Repositories, err = selectRepositories(a.cfg.Repositories, args); err != nil {
				return err
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			runner, cleanup, err := a.newRunner(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			combined, err := runner.Aggregate(ctx)
			if err != nil {
				return err
			}
			return a.report(cmd, combined, flags.charts)
		},
	}
	flags.bind(cmd)
	return cmd
}

func newRenderCommand(opts *rootOptions) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Draw HTML charts from the combined summary CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if input == "" {
				input = a.cfg.CombinedPath()
			}
			records, err := summary.ReadFile(input)
			if err != nil {
				return err
			}
			return a.report(cmd, models.Combined{Records: records}, true)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "combined summary CSV (default <output_dir>/combined_summary.csv)")
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Consume scan jobs from SQS until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if a.cfg.SQS.QueueURL == "" {
				return config.ErrMissingQueueURL
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			runner, cleanup, err := a.newRunner(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			awsCfg, err := a.awsConfig(ctx)
			if err != nil {
				return err
			}
			producer := &services.DefaultSQSProducer{
				Client:      sqs.NewFromConfig(awsCfg),
				QueueURL:    a.cfg.SQS.QueueURL,
				WaitSeconds: a.cfg.SQS.WaitSeconds,
				Log:         a.log,
			}
			consumer := &services.DefaultJobConsumer{
				Runner:  runner,
				Workers: a.cfg.SQS.Workers,
				Log:     a.log,
			}

			a.log.Infow("consuming scan jobs", "queue", a.cfg.SQS.QueueURL, "workers", a.cfg.SQS.Workers)
			consumer.Start(ctx, producer.Start(ctx))
			a.log.Info("scan job consumer stopped")
			return nil
		},
	}
}

// report prints the totals table and optionally writes charts.
func (a *app) report(cmd *cobra.Command, combined models.Combined, charts bool) error {
	summary.RenderTable(cmd.OutOrStdout(), combined)
	if !charts {
		return nil
	}
	files, err := chart.WriteAll(a.cfg.OutputDir, combined)
	if err != nil {
		return err
	}
	for _, f := range files {
		a.log.Infow("chart written", "path", f)
	}
	return nil
}
