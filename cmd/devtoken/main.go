// Command devtoken signs a bearer token for a user id, for local testing.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/spec-kit/ticket-escalation/internal/auth"
	"github.com/spec-kit/ticket-escalation/internal/config"
	"github.com/spec-kit/ticket-escalation/internal/domain"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("devtoken", pflag.ContinueOnError)
	var (
		userID string
		role   string
		ttl    int
	)
	flagSet.StringVarP(&userID, "user", "u", "", "user id to sign for (required)")
	flagSet.StringVarP(&role, "role", "r", "", "role claim, informational only")
	flagSet.IntVar(&ttl, "ttl", 0, "lifetime in minutes (default from AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if userID == "" {
		flagSet.Usage()
		return errors.New("--user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = cfg.Auth.AccessTokenTTLMinutes
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, ttl)
	token, expiresAt, err := tokens.GenerateToken(&domain.User{ID: userID, Role: domain.Role(role)})
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}
