package main

import (
	"log"

	"parley/cmd/server/config"
	"parley/internal/auth"
)

// buildVerifier selects JWT verification when a signing secret is
// configured and otherwise falls back to the static dev token map.
func buildVerifier() (auth.TokenVerifier, error) {
	cfg, err := config.LoadAuth()
	if err != nil {
		return nil, err
	}

	if cfg.JWTSecret != "" {
		return auth.NewJWTVerifier([]byte(cfg.JWTSecret), cfg.JWTAlg)
	}

	log.Printf("AUTH_JWT_SECRET not set, using %d static dev tokens", len(cfg.DevTokens))
	return auth.NewStaticVerifier(cfg.DevTokens), nil
}
