package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// envPassword supplies --password when the flag is not given.
const envPassword = "STAYCONNECTED_PASSWORD"

func newAuthCmd(a *app) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the local account",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show who is signed in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, ok := a.auth.Current()
			switch {
			case !ok:
				fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			case u.Anonymous:
				fmt.Fprintf(cmd.OutOrStdout(), "anonymous\t%s\n", u.ID)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", u.Email, u.ID)
			}
			return nil
		},
	}

	anonCmd := &cobra.Command{
		Use:   "anon",
		Short: "Sign in anonymously unless someone is already signed in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := a.auth.EnsureSignedIn(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), uid)
			return nil
		},
	}

	var email, password string
	credentials := func() (string, string, error) {
		pw := password
		if pw == "" {
			pw = os.Getenv(envPassword)
		}
		if email == "" || pw == "" {
			return "", "", errors.New("--email and --password (or " + envPassword + ") are required")
		}
		return email, pw, nil
	}

	signUpCmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, pw, err := credentials()
			if err != nil {
				return err
			}
			u, err := a.auth.SignUp(cmd.Context(), e, pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u.ID)
			return nil
		},
	}

	signInCmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in to an existing account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, pw, err := credentials()
			if err != nil {
				return err
			}
			u, err := a.auth.SignIn(cmd.Context(), e, pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u.ID)
			return nil
		},
	}

	for _, c := range []*cobra.Command{signUpCmd, signInCmd} {
		c.Flags().StringVar(&email, "email", "", "Account email")
		c.Flags().StringVar(&password, "password", "", "Account password")
	}

	signOutCmd := &cobra.Command{
		Use:   "signout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.auth.SignOut(cmd.Context())
		},
	}

	authCmd.AddCommand(statusCmd, anonCmd, signUpCmd, signInCmd, signOutCmd)
	return authCmd
}
