package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"access-portal/internal/client"
	"access-portal/pkg/token"
)

func main() {
	app := &cli.App{
		Name:  "portalctl",
		Usage: "Command-line client for the access portal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Portal base URL",
				EnvVars: []string{"PORTAL_SERVER"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "storage",
				Usage:   "Path of the local token storage file",
				EnvVars: []string{"PORTAL_STORAGE"},
			},
			&cli.StringFlag{
				Name:    "session-cookie",
				Usage:   "Name of the server's session cookie",
				EnvVars: []string{"PORTAL_SESSION_COOKIE"},
				Value:   client.DefaultSessionCookie,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in and store the session token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, EnvVars: []string{"PORTAL_PASSWORD"}},
				},
				Action: login,
			},
			{
				Name:   "logout",
				Usage:  "End the session and clear local storage",
				Action: logout,
			},
			{
				Name:   "capabilities",
				Usage:  "List capabilities of the current session, or guest ones",
				Action: capabilities,
			},
			{
				Name:   "whoami",
				Usage:  "Show the logged-in person",
				Action: whoami,
			},
			{
				Name:   "token",
				Usage:  "Show the claims of the stored token",
				Action: showToken,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(c *cli.Context) (*client.Client, error) {
	path := c.String("storage")
	if path == "" {
		var err error
		if path, err = token.DefaultStorePath(); err != nil {
			return nil, err
		}
	}
	keeper := token.NewKeeper(token.NewFileStore(path))

	return client.New(c.String("server"), keeper,
		client.WithSessionCookie(c.String("session-cookie")),
		client.OnTokenExpired(func(expired bool) {
			if !expired {
				return
			}
			// A stale token is useless; start over from a clean store.
			if err := keeper.Clear(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to clear storage: %v\n", err)
			}
			fmt.Fprintln(os.Stderr, "Your session expired. Run 'portalctl login' again.")
		}),
	), nil
}

func login(c *cli.Context) error {
	password := c.String("password")
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimSpace(string(raw))
	}

	cl, err := newClient(c)
	if err != nil {
		return err
	}
	resp, err := cl.Login(c.Context, c.String("email"), password)
	if err != nil {
		return explain(err)
	}
	fmt.Printf("Logged in as %s %s\n", resp.FirstName, resp.LastName)
	return nil
}

func logout(c *cli.Context) error {
	cl, err := newClient(c)
	if err != nil {
		return err
	}
	if err := cl.Logout(c.Context); err != nil {
		var apiErr *client.APIError
		// Local storage is already cleared; a missing server session is not a failure.
		if !errors.As(err, &apiErr) || apiErr.StatusCode != 401 {
			return explain(err)
		}
	}
	fmt.Println("Logged out")
	return nil
}

func capabilities(c *cli.Context) error {
	cl, err := newClient(c)
	if err != nil {
		return err
	}
	resp, err := cl.Capabilities(c.Context)
	if err != nil {
		return explain(err)
	}
	if resp.Guest {
		fmt.Println("# guest")
	}
	for _, capability := range resp.Capabilities {
		fmt.Println(capability)
	}
	return nil
}

func whoami(c *cli.Context) error {
	cl, err := newClient(c)
	if err != nil {
		return err
	}
	resp, err := cl.Me(c.Context)
	if err != nil {
		return explain(err)
	}
	return printJSON(resp)
}

func showToken(c *cli.Context) error {
	cl, err := newClient(c)
	if err != nil {
		return err
	}
	resp, err := cl.Token(c.Context)
	if err != nil {
		return explain(err)
	}
	return printJSON(resp)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// explain replaces API errors with the server's message.
func explain(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return cli.Exit(apiErr.Message, 1)
	}
	return err
}
