package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/perfgo/benchtrack/config"
	"github.com/perfgo/benchtrack/harness"
	"github.com/perfgo/benchtrack/history"
	"github.com/perfgo/benchtrack/notify"
	"github.com/perfgo/benchtrack/query"
	"github.com/perfgo/benchtrack/regression"
	"github.com/perfgo/benchtrack/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const AppName = "benchtrack"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
	cfg    *config.Config

	stdout io.Writer
	now    func() time.Time
	// Directory git metadata is read from, empty for the working directory
	gitDir string
	// Slack API endpoint override
	slackAPIURL string
}

func toolFlag(required bool) cli.Flag {
	return &cli.StringFlag{
		Name:     "tool",
		Aliases:  []string{"t"},
		Usage:    "Benchmark suite the entries belong to (e.g. \"Rust Benchmark\")",
		Required: required,
	}
}

func notifyFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "notify",
		Usage: "Post regressions and improvements to the configured Slack channel",
	}
}

func failFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "fail-on-regression",
		Usage: "Exit with an error when any measurement regressed",
	}
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		stdout: os.Stdout,
		now:    time.Now,
		cli: &cli.App{
			Name:  AppName,
			Usage: "Record benchmark runs and detect performance regressions",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
				&cli.StringFlag{
					Name:    "config",
					Aliases: []string{"c"},
					Usage:   fmt.Sprintf("Configuration file (default: first of %v found)", config.DefaultFiles),
				},
				&cli.StringFlag{
					Name:    "data",
					Aliases: []string{"d"},
					Usage:   "History document location, overrides store.location (path or gs://bucket/object)",
				},
				&cli.IntFlag{
					Name:  "window",
					Usage: "Baseline window, overrides detector.baselineWindow",
				},
				&cli.Float64Flag{
					Name:  "threshold",
					Usage: "Threshold ratio, overrides detector.thresholdRatio",
				},
			},
		},
	}
	app.cli.Before = app.before

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "ingest",
		Usage:     "Record the output of a benchmark run and check it for regressions",
		ArgsUsage: " ",
		Action:    app.ingest,
		Flags: []cli.Flag{
			toolFlag(false),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   fmt.Sprintf("Harness output format, one of %v", harness.Formats),
				Value:   string(harness.FormatCargo),
			},
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "File with the harness output, - for stdin",
				Value:   "-",
			},
			&cli.StringFlag{
				Name:  "commit-file",
				Usage: "JSON file with the commit metadata (default: read from git)",
			},
			failFlag(),
			notifyFlag(),
		},
		Description: `Parse the output of a benchmark harness, append it to the history
of the tool and compare every measurement with its baseline.

Commit metadata is taken from the run record (json format), the file
given with --commit-file or the git repository in the working directory.

Examples:
  cargo bench | benchtrack ingest --tool "Rust Benchmark"
  go test -bench . -count 5 ./... > out.txt
  benchtrack ingest --tool "Go Benchmark" --format go --input out.txt --fail-on-regression`,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "tools",
		Usage:  "List the benchmark suites in the history",
		Action: app.tools,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "measurements",
		Usage:  "List the measurements recorded for a tool",
		Action: app.measurements,
		Flags:  []cli.Flag{toolFlag(true)},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "series",
		Usage:  "Show the history of one measurement",
		Action: app.series,
		Flags: []cli.Flag{
			toolFlag(true),
			&cli.StringFlag{
				Name:     "name",
				Aliases:  []string{"m"},
				Usage:    "Measurement name",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Only show the most recent points (0 for all)",
			},
			&cli.TimestampFlag{
				Name:   "cutoff",
				Usage:  "Only show points recorded at or before this time (RFC3339)",
				Layout: time.RFC3339,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the points as JSON",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "latest",
		Usage:  "Show the most recent value of a measurement",
		Action: app.latest,
		Flags: []cli.Flag{
			toolFlag(true),
			&cli.StringFlag{
				Name:     "name",
				Aliases:  []string{"m"},
				Usage:    "Measurement name",
				Required: true,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "check",
		Usage:  "Check the latest entry of one or all tools against its baseline",
		Action: app.check,
		Flags: []cli.Flag{
			toolFlag(false),
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Check every tool",
			},
			failFlag(),
			notifyFlag(),
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "persist",
		Usage:  "Rewrite the history document in the current format",
		Action: app.persist,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to this location instead of the store location",
			},
		},
		Description: `Rewrite the history document, for example to add the version field to
a legacy document, to compress it (.gz suffix) or to publish a copy for the
dashboard renderer.`,
	})
	return app
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && len(commit) >= 8 {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}

func (a *App) before(ctx *cli.Context) error {
	if ctx.Bool("verbose") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return err
	}
	if ctx.IsSet("data") {
		cfg.Store.Location = ctx.String("data")
	}
	if ctx.IsSet("window") {
		cfg.Detector.BaselineWindow = ctx.Int("window")
	}
	if ctx.IsSet("threshold") {
		cfg.Detector.ThresholdRatio = ctx.Float64("threshold")
	}
	a.cfg = cfg
	return nil
}

// openStore opens the history store. The returned function releases the
// storage backend.
func (a *App) openStore(ctx context.Context) (*history.Store, func(), error) {
	if a.cfg.Store.Location == "" {
		return nil, nil, errors.Mark(errors.New("no store location, set store.location or --data"), config.ErrConfig)
	}
	backend, err := storage.Open(ctx, a.cfg.Store.Location)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if c, ok := backend.(io.Closer); ok {
			if err := c.Close(); err != nil {
				a.logger.Debug().Err(err).Msg("Failed to close storage backend")
			}
		}
	}

	store, err := history.Open(ctx,
		storage.NewRetrying(backend, a.cfg.StoreRetries(), a.logger),
		history.WithLogger(a.logger),
		history.WithRetention(a.cfg.HistoryRetention()),
		history.WithRepoURL(a.cfg.RepoURL),
	)
	if err != nil {
		release()
		return nil, nil, err
	}
	return store, release, nil
}

func (a *App) newDetector() (*regression.Detector, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	return regression.New(a.cfg.Detector)
}

func (a *App) notifier() (*notify.Slack, error) {
	if !a.cfg.Slack.Enabled() {
		return nil, errors.Mark(errors.New("slack.token and slack.channel must be configured for --notify"), config.ErrConfig)
	}
	opts := []notify.Option{notify.WithLogger(a.logger)}
	if a.slackAPIURL != "" {
		opts = append(opts, notify.WithAPIURL(a.slackAPIURL))
	}
	return notify.New(a.cfg.Slack.Token, a.cfg.Slack.Channel, a.cfg.Slack.Username, opts...)
}

// finish reports a check outcome: it posts the notification when requested
// and fails when a regression must fail the run.
func (a *App) finish(ctx context.Context, n *notify.Slack, report *query.Report, failOnRegression bool) error {
	if n != nil {
		if _, err := n.Notify(ctx, report.Tool, report.Entry, report.Results); err != nil {
			return err
		}
	}
	if failOnRegression && report.Regressed() {
		return errors.Newf("%d measurement(s) of %s regressed", len(report.Summary.Regressed), report.Tool)
	}
	return nil
}
