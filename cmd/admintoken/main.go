// Package main mints admin bearer tokens for the provider search admin routes.
//
// Tokens are signed with ADMIN_JWT_SECRET (the current key), so they remain
// valid during a rotation while ADMIN_JWT_PREVIOUS_SECRET is still accepted
// by the server.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/onnwee/provider-search/internal/auth"
	"github.com/onnwee/provider-search/internal/config"
)

// DefaultTTL is the lifetime of a minted token.
const DefaultTTL = 15 * time.Minute

// MaxTTL caps -ttl so admin tokens stay short-lived.
const MaxTTL = 24 * time.Hour

func main() {
	configPath := flag.String("config", "", "path to YAML config file (environment variables override it)")
	subject := flag.String("subject", "", "operator identity recorded in the token (required)")
	ttl := flag.Duration("ttl", DefaultTTL, "token lifetime")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Provider Search Admin Token")
		fmt.Println()
		fmt.Println("Usage: admintoken -subject ops@example.org [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		}
		os.Exit(1)
	}

	if err := mint(os.Stdout, cfg, *subject, *ttl); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// mint writes a signed admin token for subject to w.
func mint(w io.Writer, cfg *config.Config, subject string, ttl time.Duration) error {
	if !cfg.AdminEnabled() {
		return errors.New("ADMIN_JWT_SECRET is not set; admin routes are disabled")
	}
	if subject == "" {
		return errors.New("-subject is required")
	}
	if ttl <= 0 || ttl > MaxTTL {
		return fmt.Errorf("-ttl must be between 1s and %s", MaxTTL)
	}

	svc := auth.NewJWTServiceWithRotation(cfg.AdminJWTSecret, cfg.AdminJWTPreviousSecret)
	token, err := svc.GenerateAdminToken(subject, ttl)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
