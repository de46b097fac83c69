// Package main provides walletctl, a command-line wallet for the walletauth API.
//
// It signs in with a local key, prints the session credential and uses it
// for authenticated calls:
//
//	export WALLETCTL_CREDENTIAL=$(walletctl --key $KEY login)
//	walletctl balances
//	walletctl logout
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/layer-3/walletauth/adapters/signer"
	"github.com/layer-3/walletauth/client"
	"github.com/layer-3/walletauth/ports"
)

func main() {
	app := &cli.App{
		Name:  "walletctl",
		Usage: "sign in to walletauth with a local key and query balances",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "walletauth base URL",
				EnvVars: []string{"WALLETCTL_SERVER"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "key",
				Usage:   "hex encoded private key",
				EnvVars: []string{"WALLETCTL_PRIVATE_KEY"},
			},
			&cli.StringFlag{
				Name:    "keystore",
				Usage:   "path to an encrypted keystore file, used when --key is empty",
				EnvVars: []string{"WALLETCTL_KEYSTORE"},
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "keystore password",
				EnvVars: []string{"WALLETCTL_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "credential",
				Usage:   "session credential returned by login",
				EnvVars: []string{"WALLETCTL_CREDENTIAL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "sign in and print the session credential",
				Action: func(c *cli.Context) error {
					wallet, err := loadSigner(c)
					if err != nil {
						return err
					}
					resp, err := client.New(c.String("server"), wallet).Connect(c.Context)
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, resp.Credential)
					return nil
				},
			},
			{
				Name:  "balances",
				Usage: "print the balances of the signed in account",
				Action: func(c *cli.Context) error {
					resp, err := authenticated(c).Balances(c.Context)
					if err != nil {
						return err
					}
					return printJSON(c, resp)
				},
			},
			{
				Name:  "me",
				Usage: "print the current session",
				Action: func(c *cli.Context) error {
					resp, err := authenticated(c).Me(c.Context)
					if err != nil {
						return err
					}
					return printJSON(c, resp)
				},
			},
			{
				Name:  "logout",
				Usage: "revoke the session credential",
				Action: func(c *cli.Context) error {
					return authenticated(c).Logout(c.Context)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadSigner(c *cli.Context) (ports.Signer, error) {
	if key := c.String("key"); key != "" {
		return signer.FromHex(key)
	}
	if path := c.String("keystore"); path != "" {
		return signer.FromKeystore(path, c.String("password"))
	}
	return nil, errors.New("either --key or --keystore is required")
}

// authenticated builds a client that only uses the stored credential.
func authenticated(c *cli.Context) *client.Client {
	return client.New(c.String("server"), nil, client.WithCredential(c.String("credential")))
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
