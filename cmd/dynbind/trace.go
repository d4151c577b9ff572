package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/funvibe/dynbind/internal/trace"
	"github.com/funvibe/dynbind/pkg/binder"
)

type TraceCmd struct {
	Limit  int  `help:"Number of events to show." default:"20" short:"n"`
	Counts bool `help:"Show per-outcome totals instead of events."`
}

func (c *TraceCmd) Run(env *Env) error {
	path := env.Config.Trace.Path
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no trace database at %s (enable trace in dynbind.yaml): %w", path, err)
	}
	store, err := trace.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if c.Counts {
		counts, err := store.Counts(ctx)
		if err != nil {
			return err
		}
		outcomes := make([]binder.Outcome, 0, len(counts))
		for o := range counts {
			outcomes = append(outcomes, o)
		}
		sort.Slice(outcomes, func(i, j int) bool { return outcomes[i] < outcomes[j] })
		for _, o := range outcomes {
			fmt.Printf("%s %d\n", outcomeStyle(env, o, fmt.Sprintf("%-10s", o)), counts[o])
		}
		return nil
	}

	records, err := store.Recent(ctx, c.Limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tOUTCOME\tKIND\tCANDIDATES\tINTEROP\tDURATION\tSITE")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%v\t%s\t%s\n",
			r.Time.Format(time.RFC3339), r.Outcome, r.Kind,
			r.Candidates, r.Interop, r.Duration, r.Site)
	}
	return w.Flush()
}

func outcomeStyle(env *Env, o binder.Outcome, text string) string {
	switch o {
	case binder.OutcomeFailed:
		return env.Style.Fail(text)
	case binder.OutcomeSuggested:
		return env.Style.Warn(text)
	}
	return env.Style.Ok(text)
}
