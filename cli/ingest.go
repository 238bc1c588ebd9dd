package cli

// This file contains the ingest command, which records one benchmark run.

import (
	"encoding/json"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/perfgo/benchtrack/harness"
	"github.com/perfgo/benchtrack/model"
	"github.com/perfgo/benchtrack/notify"
	"github.com/perfgo/benchtrack/query"
	"github.com/urfave/cli/v2"
)

func (a *App) ingest(ctx *cli.Context) error {
	// Fail on configuration problems before anything is read or written
	detector, err := a.newDetector()
	if err != nil {
		return err
	}
	var n *notify.Slack
	if ctx.Bool("notify") {
		if n, err = a.notifier(); err != nil {
			return err
		}
	}

	run, err := a.readRun(ctx.String("format"), ctx.String("input"))
	if err != nil {
		return err
	}

	tool := ctx.String("tool")
	if tool == "" {
		tool = run.Tool
	}
	if tool == "" {
		return errors.New("no tool given, use --tool")
	}

	commit, err := a.resolveCommit(run, ctx.String("commit-file"))
	if err != nil {
		return err
	}

	entry, err := model.Normalize(run.Raw, commit, tool, a.now())
	if err != nil {
		return err
	}

	store, release, err := a.openStore(ctx.Context)
	if err != nil {
		return err
	}
	defer release()

	receipt, err := store.Ingest(ctx.Context, tool, entry, a.cfg.Store.Timeout)
	if err != nil {
		return errors.Wrap(err, "failed to record benchmark run")
	}
	if receipt.Duplicate {
		a.logger.Info().
			Str("tool", tool).
			Str("commit", commit.ShortID()).
			Msg("Run was already recorded")
	} else {
		a.logger.Info().
			Str("tool", tool).
			Str("commit", commit.ShortID()).
			Int("measurements", len(receipt.Entry.Measurements)).
			Uint64("version", uint64(receipt.Version)).
			Msg("Recorded benchmark run")
	}

	report, err := query.New(store, detector).Check(tool, receipt.Entry, 0)
	if err != nil {
		return err
	}
	a.printReport(report)
	return a.finish(ctx.Context, n, report, ctx.Bool("fail-on-regression"))
}

func (a *App) readRun(format, input string) (*harness.Run, error) {
	parser, err := harness.NewParser(harness.Format(format), a.logger)
	if err != nil {
		return nil, err
	}

	var reader io.Reader = os.Stdin
	if input != "" && input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open harness output")
		}
		defer f.Close()
		reader = f
	}

	run, err := parser.Parse(reader)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().
		Str("format", format).
		Int("measurements", len(run.Raw.Measurements)).
		Msg("Parsed harness output")
	return run, nil
}

// resolveCommit picks the commit metadata of a run: the run record, then the
// commit file, then git.
func (a *App) resolveCommit(run *harness.Run, commitFile string) (model.Commit, error) {
	if run.Commit != nil {
		return *run.Commit, nil
	}
	if commitFile != "" {
		data, err := os.ReadFile(commitFile)
		if err != nil {
			return model.Commit{}, errors.Wrap(err, "failed to read commit file")
		}
		var commit model.Commit
		if err := json.Unmarshal(data, &commit); err != nil {
			return model.Commit{}, errors.Wrapf(err, "failed to parse commit file %s", commitFile)
		}
		return commit, nil
	}

	commit, err := a.getGitCommit()
	if err != nil {
		a.logger.Warn().Err(err).Msg("No commit metadata available, recording the run without it")
		return model.Commit{}, nil
	}
	return commit, nil
}
