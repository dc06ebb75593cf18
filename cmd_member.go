package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"librarian/library"
)

func newMemberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage accounts from the command line",
	}
	cmd.AddCommand(newMemberCreateCmd(), newMemberPasswdCmd())
	return cmd
}

func newMemberCreateCmd() *cobra.Command {
	var (
		name  string
		email string
		role  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account; the password is read from the terminal or stdin",
		Example: `  librarian member create --name "Ayşe Yılmaz" --email ayse@example.com --role admin
  echo 's3cret!!' | librarian member create --name Bot --email bot@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := library.ParseRole(role)
			if err != nil {
				return err
			}
			password, err := readNewPassword()
			if err != nil {
				return err
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			lm, err := a.openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer lm.Close()

			id, err := lm.AddMember(cmd.Context(), library.MemberInput{
				FullName:     name,
				Email:        email,
				Role:         r,
				MaxLoanLimit: &limit,
			}, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s account %d for %s\n", r, id, email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "login e-mail")
	cmd.Flags().StringVar(&role, "role", string(library.RoleMember), "admin, librarian or member")
	cmd.Flags().IntVar(&limit, "limit", library.DefaultMaxLoanLimit, "maximum open loans")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newMemberPasswdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd <member-id>",
		Short: "Set a new password for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid member id %q", args[0])
			}
			password, err := readNewPassword()
			if err != nil {
				return err
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			lm, err := a.openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer lm.Close()

			if err := lm.ResetPassword(cmd.Context(), id, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password updated for member %d\n", id)
			return nil
		},
	}
}
