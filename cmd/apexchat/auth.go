package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginEmail    string
	loginPassword string

	registerFirstName string
	registerLastName  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and print a session token",
	Long: `Sign in with email and password and print the session token.

Export the token as APEX_CLIENT_AUTH_TOKEN (or set client.auth_token) so the
other commands can use it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordOrPrompt(loginPassword)
		if err != nil {
			return err
		}

		c, err := newRESTClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Client.RequestTimeout)
		defer cancel()

		if err := c.Login(ctx, domain.Credentials{Email: loginEmail, Password: password}); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		token := c.Token()
		if token == "" {
			return errors.New("login succeeded but the server did not set a session cookie")
		}

		fmt.Fprintln(os.Stderr, titleStyle.Render("Signed in as "+loginEmail))
		fmt.Println(token)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordOrPrompt(loginPassword)
		if err != nil {
			return err
		}

		c, err := newRESTClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Client.RequestTimeout)
		defer cancel()

		err = c.Register(ctx, domain.AccountCreate{
			FirstName: registerFirstName,
			LastName:  registerLastName,
			Email:     loginEmail,
			Password:  password,
		})
		if err != nil {
			return fmt.Errorf("registration failed: %w", err)
		}

		fmt.Println(titleStyle.Render("Account created for " + loginEmail))
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newRESTClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Client.RequestTimeout)
		defer cancel()

		user, err := c.CurrentUser(ctx)
		if err != nil {
			return err
		}
		if user == nil {
			return errors.New("not signed in")
		}

		fmt.Printf("%s %s\n", titleStyle.Render(user.DisplayName()), idStyle.Render(user.Email))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session on the backend",
	Long: `Revoke the configured session token on the backend.

Unset APEX_CLIENT_AUTH_TOKEN (or client.auth_token) afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newRESTClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Client.RequestTimeout)
		defer cancel()

		if err := c.Logout(ctx); err != nil {
			return fmt.Errorf("logout failed: %w", err)
		}

		fmt.Println(titleStyle.Render("Signed out"))
		return nil
	},
}

// passwordOrPrompt reads the password from the terminal when none was given
func passwordOrPrompt(password string) (string, error) {
	if password != "" {
		return password, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVar(&loginEmail, "email", "", "Account email")
		c.Flags().StringVar(&loginPassword, "password", "", "Account password (prompted when omitted)")
		c.MarkFlagRequired("email")
	}
	registerCmd.Flags().StringVar(&registerFirstName, "first-name", "", "First name")
	registerCmd.Flags().StringVar(&registerLastName, "last-name", "", "Last name")
	registerCmd.MarkFlagRequired("first-name")
	registerCmd.MarkFlagRequired("last-name")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}
