package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spachava753/stayconnected/identity"
	"github.com/spachava753/stayconnected/people"
)

func newResolveCmd(a *app) *cobra.Command {
	var c identity.Candidate
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the storage key a contact resolves to",
		Long: `Resolves a contact to its storage key. The first usable signal wins:
id, then email, then phone digits, then a hash of the normalized name.

Example:
  stayconnected resolve --email Foo@Bar.com --name "Foo Bar"`,
		Args:               cobra.NoArgs,
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := identity.Resolve(c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, identity.BranchOf(key))
			return nil
		},
	}
	cmd.Flags().StringVar(&c.ID, "id", "", "Explicit id")
	cmd.Flags().StringVar(&c.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&c.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&c.Name, "name", "", "Display name")
	return cmd
}

func newPeopleCmd(a *app) *cobra.Command {
	peopleCmd := &cobra.Command{
		Use:   "people",
		Short: "List and edit people",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List people by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := a.uid()
			if err != nil {
				return err
			}
			list, err := a.book.List(cmd.Context(), uid)
			if err != nil {
				return err
			}
			printPeople(cmd, list)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show [key]",
		Short: "Show one person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := a.uid()
			if err != nil {
				return err
			}
			p, err := a.book.Get(cmd.Context(), uid, args[0])
			if err != nil {
				return err
			}
			printPerson(cmd, p)
			return nil
		},
	}

	var in people.PersonInput
	var relationship string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add or replace a person",
		Long: `Adds a person keyed by the resolved identity. Adding someone who already
exists updates their fields and keeps their original creation time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := a.uid()
			if err != nil {
				return err
			}
			if relationship != "" {
				if in.Relationship, err = people.ParseRelationship(relationship); err != nil {
					return err
				}
			}
			p, err := a.book.Upsert(cmd.Context(), uid, in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.Key)
			return nil
		},
	}
	addCmd.Flags().StringVar(&in.Key, "key", "", "Explicit key (default: resolved from email, phone or name)")
	addCmd.Flags().StringVar(&in.Name, "name", "", "Name (required)")
	addCmd.Flags().StringVar(&in.Nickname, "nickname", "", "Nickname")
	addCmd.Flags().StringVar(&in.Phone, "phone", "", "Phone number")
	addCmd.Flags().StringVar(&in.Email, "email", "", "Email address")
	addCmd.Flags().StringVar(&in.Birthday, "birthday", "", "Birthday, YYYY-MM-DD")
	addCmd.Flags().StringVar(&relationship, "relationship", "", relationshipHelp())
	addCmd.Flags().StringVar(&in.Notes, "notes", "", "Notes")

	var edit struct {
		nickname     string
		relationship string
		notes        string
	}
	editCmd := &cobra.Command{
		Use:   "edit [key]",
		Short: "Change the nickname, relationship or notes of a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := a.uid()
			if err != nil {
				return err
			}
			var patch people.PersonPatch
			flags := cmd.Flags()
			set := func(name string, value string, dst **string) {
				if flags.Changed(name) {
					v := value
					*dst = &v
				}
			}
			set("nickname", edit.nickname, &patch.Nickname)
			set("notes", edit.notes, &patch.Notes)
			if flags.Changed("relationship") {
				rel, err := people.ParseRelationship(edit.relationship)
				if err != nil {
					return err
				}
				patch.Relationship = &rel
			}
			p, err := a.book.Update(cmd.Context(), uid, args[0], patch)
			if err != nil {
				return err
			}
			printPerson(cmd, p)
			return nil
		},
	}
	editCmd.Flags().StringVar(&edit.nickname, "nickname", "", "Nickname")
	editCmd.Flags().StringVar(&edit.relationship, "relationship", "", relationshipHelp())
	editCmd.Flags().StringVar(&edit.notes, "notes", "", "Notes")

	deleteCmd := &cobra.Command{
		Use:   "delete [key]",
		Short: "Delete a person and their plans",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := a.uid()
			if err != nil {
				return err
			}
			return a.book.Delete(cmd.Context(), uid, args[0])
		},
	}

	peopleCmd.AddCommand(listCmd, showCmd, addCmd, editCmd, deleteCmd)
	return peopleCmd
}

func relationshipHelp() string {
	names := make([]string, 0, len(people.Relationships))
	for _, r := range people.Relationships {
		names = append(names, string(r))
	}
	return "Relationship: " + strings.Join(names, ", ")
}

func printPeople(cmd *cobra.Command, list []people.Person) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tRELATIONSHIP\tPHONE\tEMAIL")
	for _, p := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Key, p.DisplayName(), p.Relationship, p.Phone, p.Email)
	}
	w.Flush()
}

func printPerson(cmd *cobra.Command, p people.Person) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"key", p.Key},
		{"name", p.Name},
		{"nickname", p.Nickname},
		{"relationship", string(p.Relationship)},
		{"phone", p.Phone},
		{"email", p.Email},
		{"birthday", p.Birthday},
		{"notes", p.Notes},
	}
	for _, row := range rows {
		if row[1] != "" {
			fmt.Fprintf(w, "%s:\t%s\n", row[0], row[1])
		}
	}
	w.Flush()
}
