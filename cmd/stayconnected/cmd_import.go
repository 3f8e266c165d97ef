package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spachava753/stayconnected/macos/contacts"
	"github.com/spachava753/stayconnected/macos/messages"
	"github.com/spachava753/stayconnected/mail"
	"github.com/spachava753/stayconnected/people"
)

func (a *app) source(name string) (people.Source, error) {
	switch name {
	case "contacts":
		return contacts.New(contacts.WithLogger(a.log.Named("contacts"))), nil
	case "messages":
		return messages.New(messages.WithLogger(a.log.Named("messages"))), nil
	case "mail":
		return mail.NewSource(a.cfg.MailSettings(), mail.WithLogger(a.log.Named("mail"))), nil
	default:
		return nil, fmt.Errorf("unknown source %q (want contacts, messages or mail)", name)
	}
}

func newImportCmd(a *app) *cobra.Command {
	var (
		sourceName string
		listAll    bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import people from a device source without creating duplicates",
		Long: `Reads people from a source and adds the ones that are not stored yet.
People already stored under the same key are skipped and never overwritten,
so running an import twice adds nothing the second time.

Sources:
  contacts - the macOS address book
  messages - people you text, from the Messages database
  mail     - frequent correspondents over IMAP (needs STAYCONNECTED_MAIL_ADDRESS
             and STAYCONNECTED_MAIL_PASSWORD)

Signs in anonymously when nobody is signed in.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, err := a.source(sourceName)
			if err != nil {
				return err
			}
			uid, err := a.auth.EnsureSignedIn(ctx)
			if err != nil {
				return err
			}
			current, err := a.book.List(ctx, uid)
			if err != nil {
				return err
			}

			out, err := a.book.ImportFrom(ctx, src, people.ImportInput{UserID: uid, Existing: people.Keys(current)})
			if errors.Is(err, people.ErrPermissionDenied) {
				return fmt.Errorf("%w\nallow access and run the import again", err)
			}
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if listAll {
				for _, res := range out.Results {
					name := res.Draft.Name
					if name == "" {
						name = res.Key
					}
					fmt.Fprintf(w, "%-9s %s\n", res.Status, name)
				}
			}
			fmt.Fprintf(w, "Added %d, skipped %d", out.Added, out.Skipped)
			if out.Invalid > 0 {
				fmt.Fprintf(w, ", invalid %d", out.Invalid)
			}
			if out.Failed > 0 {
				fmt.Fprintf(w, ", failed %d", out.Failed)
			}
			fmt.Fprintln(w)
			if out.Failed > 0 {
				return fmt.Errorf("import incomplete, run it again to retry: %w", out.Err())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&sourceName, "source", "s", "contacts", "Source: contacts, messages or mail")
	cmd.Flags().BoolVar(&listAll, "list", false, "Print the outcome of every record")
	return cmd
}
