// Package command defines the tokenctl command tree for issuing and inspecting
// tokens outside the server.
package command

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tokengate/tokengate-go/internal/config"
	"github.com/tokengate/tokengate-go/internal/crypto"
	"github.com/tokengate/tokengate-go/internal/model"
	"github.com/urfave/cli/v2"
)

// Version is set via ldflags.
var Version = "dev"

var errTokenRequired = errors.New("usage: tokenctl verify <token>")

// App creates the tokenctl application.
func App() *cli.App {
	return &cli.App{
		Name:    "tokenctl",
		Usage:   "issue, verify and provision tokengate tokens",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "secret",
				Usage:   "HS256 signing secret",
				EnvVars: []string{"JWT_SECRET"},
			},
		},
		Commands: []*cli.Command{
			issueCommand(),
			verifyCommand(),
			genSecretCommand(),
		},
	}
}

func tokenService(c *cli.Context) (*crypto.TokenService, error) {
	secret := c.String("secret")
	if err := config.ValidateSecret(secret); err != nil {
		return nil, err
	}
	return crypto.NewTokenService(secret)
}

func issueCommand() *cli.Command {
	return &cli.Command{
		Name:  "issue",
		Usage: "sign a token for the given identity",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "subject (user id)", Required: true},
			&cli.StringFlag{Name: "email"},
			&cli.StringFlag{Name: "phone"},
			&cli.StringFlag{Name: "name"},
			&cli.StringFlag{Name: "avatar", Usage: "avatar URL"},
		},
		Action: func(c *cli.Context) error {
			svc, err := tokenService(c)
			if err != nil {
				return err
			}

			token, err := svc.Issue(model.UserInfo{
				ID:     c.String("id"),
				Email:  c.String("email"),
				Phone:  c.String("phone"),
				Name:   c.String("name"),
				Avatar: c.String("avatar"),
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "check a token and print the identity it carries",
		ArgsUsage: "<token>",
		Action: func(c *cli.Context) error {
			token := c.Args().First()
			if token == "" {
				return errTokenRequired
			}

			svc, err := tokenService(c)
			if err != nil {
				return err
			}

			user, err := svc.Verify(token)
			if err != nil {
				return fmt.Errorf("token rejected: %w", err)
			}

			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(user)
		},
	}
}

func genSecretCommand() *cli.Command {
	return &cli.Command{
		Name:  "gen-secret",
		Usage: "print a random secret suitable for JWT_SECRET",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "bytes", Usage: "random bytes before encoding", Value: 48},
		},
		Action: func(c *cli.Context) error {
			secret, err := crypto.GenerateSecret(c.Int("bytes"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, secret)
			return nil
		},
	}
}
