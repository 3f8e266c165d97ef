package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/spachava753/stayconnected/mail"
	"github.com/spachava753/stayconnected/people"
	"github.com/spachava753/stayconnected/plans"
)

// timeLayouts are accepted by --at, tried in order.
var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04"}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q (use \"2006-01-02 15:04\" or RFC 3339)", s)
}

func newPlansCmd(a *app) *cobra.Command {
	plansCmd := &cobra.Command{
		Use:   "plans",
		Short: "Schedule time with people",
	}

	var (
		in      plans.PlanInput
		startAt string
	)
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule a plan with a person",
		Long: `Schedules a one-on-one plan. Durations run from 15 minutes to 4 hours in
15 minute steps.

Example:
  stayconnected plans schedule --contact phone:15551234567 --at "2026-04-03 17:30" --minutes 90 --location "Blue Bottle"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := a.uid()
			if err != nil {
				return err
			}
			if in.StartsAt, err = parseTime(startAt, a.loc); err != nil {
				return err
			}
			p, err := a.planner.Schedule(cmd.Context(), uid, in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.ID)
			return nil
		},
	}
	scheduleCmd.Flags().StringVar(&in.ContactKey, "contact", "", "Person key (see \"people list\")")
	scheduleCmd.Flags().StringVar(&startAt, "at", "", "Start time")
	scheduleCmd.Flags().IntVar(&in.DurationMinutes, "minutes", 60, "Duration in minutes")
	scheduleCmd.Flags().StringVar(&in.Location, "location", "", "Where")
	scheduleCmd.Flags().StringVar(&in.Notes, "notes", "", "Notes")

	var history bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List upcoming plans, or past ones with --history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			uid, err := a.uid()
			if err != nil {
				return err
			}
			list := a.planner.Upcoming
			if history {
				list = a.planner.History
			}
			ps, err := list(ctx, uid)
			if err != nil {
				return err
			}
			everyone, err := a.book.List(ctx, uid)
			if err != nil {
				return err
			}
			names := make(map[string]string, len(everyone))
			for _, p := range everyone {
				names[p.Key] = p.DisplayName()
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tWHEN\tMINUTES\tWITH\tWHERE")
			for _, p := range ps {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", p.ID, p.StartsAt.In(a.loc).Format("Mon Jan 2 2006 15:04"), int(p.Duration/time.Minute), names[p.ContactKey], p.Location)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().BoolVar(&history, "history", false, "Show plans that have ended, newest first")

	cancelCmd := &cobra.Command{
		Use:   "cancel [id]",
		Short: "Cancel a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := a.uid()
			if err != nil {
				return err
			}
			return a.planner.Cancel(cmd.Context(), uid, args[0])
		},
	}

	remindCmd := &cobra.Command{
		Use:   "remind [id]",
		Short: "Email yourself a reminder for an upcoming plan",
		Long: `Sends the reminder to the account in STAYCONNECTED_MAIL_ADDRESS using the
SMTP server from the config file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			uid, err := a.uid()
			if err != nil {
				return err
			}
			upcoming, err := a.planner.Upcoming(ctx, uid)
			if err != nil {
				return err
			}
			var plan *plans.Plan
			for i := range upcoming {
				if upcoming[i].ID == args[0] {
					plan = &upcoming[i]
					break
				}
			}
			if plan == nil {
				return &plans.Error{Code: plans.ErrorCodeNotFound, Message: fmt.Sprintf("upcoming plan %q", args[0])}
			}
			var person people.Person
			if person, err = a.book.Get(ctx, uid, plan.ContactKey); err != nil {
				return err
			}
			id, err := mail.NewMailer(a.cfg.MailSettings(), mail.WithLogger(a.log.Named("mail"))).SendReminder(ctx, *plan, person, a.loc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	plansCmd.AddCommand(scheduleCmd, listCmd, cancelCmd, remindCmd)
	return plansCmd
}
