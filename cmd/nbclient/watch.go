package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/notebook-client/internal/api"
	"github.com/rickgao/notebook-client/internal/poller"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		notebooks []string
		interval  time.Duration
		initial   bool
		once      bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll notebook jobs and print state changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := poller.DefaultConfig()
			cfg.NotebookIDs = notebooks
			cfg.Interval = a.cfg.Poller.Interval
			if interval > 0 {
				cfg.Interval = interval
			}
			cfg.ReportInitial = initial || once

			return a.withAPI(cmd.Context(), "", func(ctx context.Context, c *api.Client) error {
				return a.watch(ctx, cmd.OutOrStdout(), cfg, c, once)
			})
		},
	}

	cmd.Flags().StringSliceVar(&notebooks, "notebook", nil, "notebook ID to watch (repeatable)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default from config)")
	cmd.Flags().BoolVar(&initial, "initial", false, "print the jobs found by the first poll")
	cmd.Flags().BoolVar(&once, "once", false, "poll once, print every job and exit")
	_ = cmd.MarkFlagRequired("notebook")

	return cmd
}

func (a *app) watch(ctx context.Context, w io.Writer, cfg poller.Config, source poller.JobSource, once bool) error {
	var mu sync.Mutex
	report := poller.TransitionHandlerFunc(func(t poller.Transition) {
		mu.Lock()
		defer mu.Unlock()
		from := string(t.From)
		if from == "" {
			from = "new"
		}
		fmt.Fprintf(w, "%s  %s  %s  %s -> %s", time.Now().Format(time.TimeOnly), t.NotebookID, t.Job.RequestID, from, t.To)
		if t.Job.Error != "" {
			fmt.Fprintf(w, "  (%s)", truncate(t.Job.Error, 80))
		}
		fmt.Fprintln(w)
	})

	p := poller.New(cfg, source, report, a.logger)
	if once {
		p.PollOnce(ctx)
		if st := p.Stats(); st.Errors > 0 {
			return fmt.Errorf("%d notebook poll(s) failed", st.Errors)
		}
		return nil
	}

	if err := p.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		return err
	}

	st := p.Stats()
	a.logger.Info("watch finished",
		"polls", st.Polls,
		"errors", st.Errors,
		"transitions", st.Transitions,
	)
	return nil
}
