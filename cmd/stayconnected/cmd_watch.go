package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spachava753/stayconnected/session"
)

func newWatchCmd(a *app) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print your people whenever they or the signed-in account change",
		Long: `Follows the signed-in account and prints the people list each time it
changes, including changes made by other stayconnected commands. Signing out
elsewhere prints an empty list; signing in again resumes. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return errors.New("--interval must be positive")
			}
			binder := session.New(a.auth, a.store, session.WithLogger(a.log.Named("session")))
			g, ctx := errgroup.WithContext(cmd.Context())

			g.Go(func() error {
				err := binder.Run(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})

			g.Go(func() error {
				t := time.NewTicker(interval)
				defer t.Stop()
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-t.C:
					}
					if err := a.auth.Restore(ctx); err != nil && ctx.Err() == nil {
						a.log.Warn("session restore failed", zap.Error(err))
					}
					if uid, err := a.auth.RequireUID(); err == nil {
						a.store.Refresh(ctx, uid)
					}
				}
			})

			g.Go(func() error {
				var last string
				for snap := range binder.Snapshots() {
					fp := fingerprint(snap)
					if fp == last {
						continue
					}
					last = fp
					printSnapshot(cmd, snap)
				}
				return nil
			})

			err := g.Wait()
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "How often to check for changes from other processes")
	return cmd
}

// fingerprint identifies what a snapshot would print.
func fingerprint(s session.Snapshot) string {
	var b strings.Builder
	b.WriteString(s.UserID)
	for _, p := range s.People {
		b.WriteByte('\n')
		b.WriteString(p.Key)
		b.WriteByte('\t')
		b.WriteString(p.UpdatedAt.String())
	}
	return b.String()
}

func printSnapshot(cmd *cobra.Command, s session.Snapshot) {
	w := cmd.OutOrStdout()
	if s.UserID == "" {
		fmt.Fprintln(w, "-- signed out")
		return
	}
	fmt.Fprintf(w, "-- %s (%d people)\n", s.UserID, len(s.People))
	printPeople(cmd, s.People)
}
