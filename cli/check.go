package cli

// This file contains the check and persist commands.

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/perfgo/benchtrack/notify"
	"github.com/perfgo/benchtrack/query"
	"github.com/perfgo/benchtrack/storage"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// Tools checked and notified in parallel by check --all
const checkParallelism = 4

func (a *App) check(ctx *cli.Context) error {
	tool, all := ctx.String("tool"), ctx.Bool("all")
	if (tool != "") == all {
		return errors.New("specify exactly one of --tool and --all")
	}

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

	store, release, err := a.openStore(ctx.Context)
	if err != nil {
		return err
	}
	defer release()

	svc := query.New(store, detector)
	tools := []string{tool}
	if all {
		tools = svc.ListTools()
	}

	reports := make([]*query.Report, len(tools))
	g, gctx := errgroup.WithContext(ctx.Context)
	g.SetLimit(checkParallelism)
	for i, tool := range tools {
		g.Go(func() error {
			report, err := svc.CheckLatest(tool)
			if err != nil {
				return errors.Wrapf(err, "failed to check %s", tool)
			}
			reports[i] = report
			if n != nil {
				if _, err := n.Notify(gctx, report.Tool, report.Entry, report.Results); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var regressed []string
	for _, report := range reports {
		a.printReport(report)
		if report.Regressed() {
			regressed = append(regressed, report.Tool)
		}
	}
	if ctx.Bool("fail-on-regression") && len(regressed) > 0 {
		return errors.Newf("regressions in %s", strings.Join(regressed, ", "))
	}
	return nil
}

func (a *App) persist(ctx *cli.Context) error {
	store, release, err := a.openStore(ctx.Context)
	if err != nil {
		return err
	}
	defer release()

	target := a.cfg.Store.Location
	if ctx.IsSet("output") {
		target = ctx.String("output")
	}
	js := strings.HasSuffix(target, ".js") || strings.HasSuffix(target, ".js.gz")

	backend, err := storage.Open(ctx.Context, target)
	if err != nil {
		return err
	}
	if c, ok := backend.(interface{ Close() error }); ok {
		defer c.Close()
	}

	data, err := query.New(store, nil).Export(js)
	if err != nil {
		return err
	}

	wctx := ctx.Context
	if a.cfg.Store.Timeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx.Context, a.cfg.Store.Timeout)
		defer cancel()
	}
	if err := storage.NewRetrying(backend, a.cfg.StoreRetries(), a.logger).Write(wctx, data); err != nil {
		return errors.Wrapf(err, "failed to write %s", target)
	}

	snap := store.Snapshot()
	a.logger.Info().
		Str("location", target).
		Int("tools", len(snap.Tools())).
		Int("bytes", len(data)).
		Msg("Wrote benchmark history")
	return nil
}
