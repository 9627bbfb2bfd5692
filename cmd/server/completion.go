package main

import (
	"log"
	"net/http"

	"parley/cmd/server/config"
	"parley/internal/completion"
)

// buildCompletionClient assembles the HTTP provider client behind the
// retry and circuit breaker wrapper. Without a configured provider it
// serves canned fallback replies so the gateway stays usable locally.
func buildCompletionClient() (completion.Client, error) {
	cfg, err := config.LoadCompletion()
	if err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		log.Println("COMPLETION_URL not set, replies use the fallback generator")
		return completion.NewStaticClient(completion.Fallback(), nil), nil
	}

	base := completion.NewHTTPClient(cfg.URL, cfg.Model, &http.Client{Timeout: cfg.Timeout})
	breaker := completion.NewCircuitBreaker(completion.CircuitBreakerConfig{
		MaxFailures:  cfg.BreakerFailures,
		ResetTimeout: cfg.BreakerCooldown,
	})
	retry := completion.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
	}
	return completion.NewReliable(base, cfg.Timeout, breaker, retry), nil
}
