package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zhouzirui/chatdesk/internal/apperr"
	"github.com/zhouzirui/chatdesk/internal/session"
)

type credentials struct {
	username string
	email    string
	password string
}

func newLoginCmd(flags *globalFlags) *cobra.Command {
	creds := &credentials{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access token",
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, _ []string) error {
			if err := promptMissing(cmd, creds, false); err != nil {
				return err
			}
			if err := a.auth.Login(cmd.Context(), creds.email, creds.password); err != nil {
				return describe("login failed", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", creds.email)
			return nil
		}),
	}
	cmd.Flags().StringVar(&creds.email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func newRegisterCmd(flags *globalFlags) *cobra.Command {
	creds := &credentials{}
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, _ []string) error {
			if err := promptMissing(cmd, creds, true); err != nil {
				return err
			}
			if err := a.auth.Register(cmd.Context(), creds.username, creds.email, creds.password); err != nil {
				return describe("registration failed", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered and logged in as %s\n", creds.email)
			return nil
		}),
	}
	cmd.Flags().StringVar(&creds.username, "username", "", "display name")
	cmd.Flags().StringVar(&creds.email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func newLogoutCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.auth.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		}),
	}
}

func newStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session state",
		RunE: withApp(flags, func(cmd *cobra.Command, a *app, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend: %s\n", a.client.BaseURL())
			fmt.Fprintf(out, "Token store: %s (%s)\n", a.cfg.Client.TokenStore, a.storeLocation())
			fmt.Fprintf(out, "Session: %s\n", a.session.State())
			if a.session.State() == session.Anonymous {
				fmt.Fprintln(out, "Run `chatctl login` to sign in.")
			}
			return nil
		}),
	}
}

// promptMissing asks for any credential not supplied by flag. Passwords are read
// without echo when stdin is a terminal.
func promptMissing(cmd *cobra.Command, creds *credentials, withUsername bool) error {
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.ErrOrStderr()

	if withUsername && creds.username == "" {
		v, err := promptLine(in, out, "Username: ")
		if err != nil {
			return err
		}
		creds.username = v
	}
	if creds.email == "" {
		v, err := promptLine(in, out, "Email: ")
		if err != nil {
			return err
		}
		creds.email = v
	}
	if creds.password == "" {
		fmt.Fprint(out, "Password: ")
		if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			raw, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(out)
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			creds.password = string(raw)
		} else {
			line, err := readLine(in)
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			creds.password = line
		}
	}
	return nil
}

func promptLine(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := readLine(in)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(strings.TrimSuffix(label, ": ")), err)
	}
	return strings.TrimSpace(line), nil
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// describe turns a client error into the text shown to the user.
func describe(prefix string, err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindTransport:
		return fmt.Errorf("%s: backend unreachable: %w", prefix, err)
	case apperr.KindSessionExpired:
		return fmt.Errorf("%s: session expired, run `chatctl login`", prefix)
	default:
		return fmt.Errorf("%s: %s", prefix, apperr.MessageOf(err))
	}
}
