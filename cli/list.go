package cli

// This file contains the read-only commands for inspecting the history.

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/perfgo/benchtrack/model"
	"github.com/perfgo/benchtrack/query"
	"github.com/perfgo/benchtrack/regression"
	"github.com/urfave/cli/v2"
)

const dateLayout = "2006-01-02 15:04:05"

func formatDate(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(dateLayout)
}

func shortCommit(id string) string {
	return model.Commit{ID: id}.ShortID()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (a *App) tools(ctx *cli.Context) error {
	store, release, err := a.openStore(ctx.Context)
	if err != nil {
		return err
	}
	defer release()

	snap := store.Snapshot()
	tools := snap.Tools()
	if len(tools) == 0 {
		fmt.Fprintln(a.stdout, "No benchmark history found")
		return nil
	}

	fmt.Fprintf(a.stdout, "\n=== Tools (%d total) ===\n\n", len(tools))
	for _, tool := range tools {
		latest, err := snap.LatestEntry(tool)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s  entries=%d  last=%s  commit=%s\n",
			tool, snap.Len(tool), formatDate(latest.RecordedAt), latest.Commit.ShortID())
	}
	return nil
}

func (a *App) measurements(ctx *cli.Context) error {
	store, release, err := a.openStore(ctx.Context)
	if err != nil {
		return err
	}
	defer release()

	snap := store.Snapshot()
	tool := ctx.String("tool")
	names, err := snap.Measurements(tool)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "\n=== %s (%d measurements) ===\n\n", tool, len(names))
	for _, name := range names {
		m, err := snap.Latest(tool, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s  %s %s (%s)\n", name, formatFloat(m.Value), m.Unit, m.Range)
	}
	return nil
}

func (a *App) series(ctx *cli.Context) error {
	store, release, err := a.openStore(ctx.Context)
	if err != nil {
		return err
	}
	defer release()

	tool, name := ctx.String("tool"), ctx.String("name")
	snap := store.Snapshot()

	var points []model.Point
	if cutoff := ctx.Timestamp("cutoff"); cutoff != nil {
		points, err = snap.SeriesAsOf(tool, name, *cutoff)
		if err != nil {
			return err
		}
		if limit := ctx.Int("limit"); limit > 0 && limit < len(points) {
			points = points[len(points)-limit:]
		}
	} else {
		points, err = snap.History(tool, name, ctx.Int("limit"))
		if err != nil {
			return err
		}
	}

	if ctx.Bool("json") {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(points)
	}

	fmt.Fprintf(a.stdout, "\n=== %s / %s (%d points) ===\n\n", tool, name, len(points))
	for _, p := range points {
		fmt.Fprintf(a.stdout, "%s  %s  %s %s (%s)\n",
			formatDate(p.RecordedAt), shortCommit(p.CommitID),
			formatFloat(p.Value), p.Unit, model.Range(p.Range))
	}
	return nil
}

func (a *App) latest(ctx *cli.Context) error {
	store, release, err := a.openStore(ctx.Context)
	if err != nil {
		return err
	}
	defer release()

	m, err := store.Snapshot().Latest(ctx.String("tool"), ctx.String("name"))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s %s (%s)\n", formatFloat(m.Value), m.Unit, m.Range)
	return nil
}

var verdictSymbols = map[regression.Verdict]string{
	regression.Regressed:    "✗",
	regression.Improved:     "✓",
	regression.Stable:       "=",
	regression.Insufficient: "?",
}

func (a *App) printReport(r *query.Report) {
	fmt.Fprintf(a.stdout, "\n=== %s @ %s ===\n\n", r.Tool, r.Entry.Commit.ShortID())

	groups := []struct {
		verdict regression.Verdict
		names   []string
	}{
		{regression.Regressed, r.Summary.Regressed},
		{regression.Improved, r.Summary.Improved},
		{regression.Stable, r.Summary.Stable},
		{regression.Insufficient, r.Summary.Insufficient},
	}
	for _, g := range groups {
		for _, name := range g.names {
			res := r.Results[name]
			if g.verdict == regression.Insufficient {
				fmt.Fprintf(a.stdout, "%s  %s  %s %s  (%d baseline points)\n",
					verdictSymbols[g.verdict], name, formatFloat(res.Value), res.Unit, res.Samples)
				continue
			}
			fmt.Fprintf(a.stdout, "%s  %s  %s %s  baseline=%s  delta=%+.1f%%\n",
				verdictSymbols[g.verdict], name, formatFloat(res.Value), res.Unit,
				formatFloat(res.Baseline), res.Delta*100)
		}
	}
	fmt.Fprintf(a.stdout, "\n%d regressed, %d improved, %d stable, %d insufficient\n",
		len(r.Summary.Regressed), len(r.Summary.Improved), len(r.Summary.Stable), len(r.Summary.Insufficient))
}
