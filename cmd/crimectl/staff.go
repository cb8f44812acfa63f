package main

import (
	"errors"
	"fmt"
	"os"

	"crimewatch/internal/app"
	"crimewatch/internal/validation"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func staffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage staff accounts that receive notifications",
	}
	cmd.AddCommand(staffCreateCmd(), staffListCmd())
	return cmd
}

func staffCreateCmd() *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff user",
		Long:  "Create a staff user. The password may also be given in CRIMECTL_PASSWORD.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("CRIMECTL_PASSWORD")
			}
			return withApp(func(a *app.App) error {
				user, err := a.Users.CreateStaff(cmd.Context(), validation.RegistrationForm{
					Username:  username,
					Email:     email,
					Password1: password,
					Password2: password,
				})
				var verrs validation.Errors
				if errors.As(err, &verrs) {
					for _, fe := range verrs {
						cmd.PrintErrf("%s: %s\n", fe.Field, fe.Err)
					}
					return fmt.Errorf("staff user not created")
				}
				if err != nil {
					return err
				}
				cmd.Printf("Created staff user %s (id %d).\n", user.Username, user.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username of the staff user")
	cmd.Flags().StringVar(&email, "email", "", "Address that receives notifications")
	cmd.Flags().StringVar(&password, "password", "", "Password (at least 8 characters)")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("email")
	return cmd
}

func staffListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staff users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				staff, err := a.Users.ListStaff(cmd.Context())
				if err != nil {
					return err
				}
				t := table.NewWriter()
				t.SetOutputMirror(cmd.OutOrStdout())
				t.AppendHeader(table.Row{"ID", "Username", "Email", "Joined"})
				for _, u := range staff {
					t.AppendRow(table.Row{u.ID, u.Username, u.Email, u.CreatedAt.Format("2006-01-02")})
				}
				t.Render()
				return nil
			})
		},
	}
}
