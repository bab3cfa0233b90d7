// Command opstoken issues an operator token for the admin and status endpoints.
//
//	OPERATOR_TOKEN_KEY=... opstoken -operator alice -ttl 8h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/atmosguard/atmosguard/internal/auth"
	"github.com/atmosguard/atmosguard/internal/config"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	operator := flag.String("operator", "", "operator name recorded in the token subject (required)")
	ttl := flag.Duration("ttl", auth.DefaultTokenExpiry, "token lifetime")
	flag.Parse()

	if *operator == "" {
		flag.Usage()
		os.Exit(2)
	}

	config.LoadDotEnv()
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	tokens := auth.NewTokenService(auth.TokenConfig{SigningKey: cfg.OperatorTokenKey})
	token, expiresAt, err := tokens.Issue(*operator, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to issue operator token")
	}

	log.Info().
		Str("operator", *operator).
		Time("expires_at", expiresAt.UTC().Truncate(time.Second)).
		Msg("operator token issued")
	fmt.Println(token)
}
