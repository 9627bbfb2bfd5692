package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RedisConfig holds Redis connection and behavior settings.
type RedisConfig struct {
	URL                string
	Stream             string
	DialTimeout        *time.Duration
	ReadTimeout        *time.Duration
	WriteTimeout       *time.Duration
	PoolSize           *int
	MinIdleConns       *int
	MaxRetries         *int
	HealthcheckTimeout time.Duration
	PresenceTTL        time.Duration
	StreamMaxLen       int64
	EnableOTel         bool
	TLSConfig          *tls.Config
}

// GatewayConfig holds the WebSocket listener and connection lifecycle settings.
type GatewayConfig struct {
	Addr              string
	IdleTimeout       time.Duration
	SweepInterval     time.Duration
	RateLimitInterval time.Duration
	RateLimitBurst    int
	HistoryLimit      int
}

// AuthConfig holds token verification settings. When JWTSecret is empty
// the server falls back to the static token map in DevTokens.
type AuthConfig struct {
	JWTSecret string
	JWTAlg    string
	DevTokens map[string]string
}

// CompletionConfig holds the AI provider endpoint and reliability settings.
type CompletionConfig struct {
	URL             string
	Model           string
	Timeout         time.Duration
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
}

// ObservabilityConfig holds the HTTP address for the metrics endpoint.
type ObservabilityConfig struct {
	Addr string
}

// LoadRedis reads Redis config from env.
func LoadRedis() (RedisConfig, error) {
	cfg := RedisConfig{
		Stream: strings.TrimSpace(os.Getenv("REDIS_STREAM")),
	}

	url, err := requiredString("REDIS_URL")
	if err != nil {
		return cfg, err
	}
	cfg.URL = url

	if cfg.DialTimeout, err = optionalDuration("REDIS_DIAL_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.ReadTimeout, err = optionalDuration("REDIS_READ_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.WriteTimeout, err = optionalDuration("REDIS_WRITE_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.PoolSize, err = optionalInt("REDIS_POOL_SIZE"); err != nil {
		return cfg, err
	}
	if cfg.MinIdleConns, err = optionalInt("REDIS_MIN_IDLE_CONNS"); err != nil {
		return cfg, err
	}
	if cfg.MaxRetries, err = optionalInt("REDIS_MAX_RETRIES"); err != nil {
		return cfg, err
	}

	if cfg.HealthcheckTimeout, err = requiredDuration("REDIS_HEALTHCHECK_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.PresenceTTL, err = requiredDuration("REDIS_PRESENCE_TTL"); err != nil {
		return cfg, err
	}
	if cfg.StreamMaxLen, err = requiredInt64("REDIS_STREAM_MAXLEN"); err != nil {
		return cfg, err
	}

	if cfg.EnableOTel, err = optionalBool("REDIS_OTEL"); err != nil {
		return cfg, err
	}

	if cfg.TLSConfig, err = loadRedisTLSFromEnv(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LoadGateway reads WebSocket gateway settings from env.
func LoadGateway() (GatewayConfig, error) {
	cfg := GatewayConfig{}
	var err error

	if cfg.Addr, err = requiredString("GATEWAY_ADDR"); err != nil {
		return cfg, err
	}
	if cfg.IdleTimeout, err = requiredDuration("GATEWAY_IDLE_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.SweepInterval, err = requiredDuration("GATEWAY_SWEEP_INTERVAL"); err != nil {
		return cfg, err
	}
	if cfg.RateLimitInterval, err = requiredDuration("GATEWAY_RATE_LIMIT_INTERVAL"); err != nil {
		return cfg, err
	}
	if cfg.RateLimitBurst, err = requiredInt("GATEWAY_RATE_LIMIT_BURST"); err != nil {
		return cfg, err
	}

	limit, err := optionalInt("GATEWAY_HISTORY_LIMIT")
	if err != nil {
		return cfg, err
	}
	if limit != nil {
		cfg.HistoryLimit = *limit
	}

	return cfg, nil
}

// LoadAuth reads token verification settings from env. Either
// AUTH_JWT_SECRET or AUTH_DEV_TOKENS must be set.
func LoadAuth() (AuthConfig, error) {
	cfg := AuthConfig{
		JWTSecret: strings.TrimSpace(os.Getenv("AUTH_JWT_SECRET")),
		JWTAlg:    strings.TrimSpace(os.Getenv("AUTH_JWT_ALG")),
	}

	tokens, err := parseDevTokens(os.Getenv("AUTH_DEV_TOKENS"))
	if err != nil {
		return AuthConfig{}, err
	}
	cfg.DevTokens = tokens

	if cfg.JWTSecret == "" && len(cfg.DevTokens) == 0 {
		return AuthConfig{}, errors.New("AUTH_JWT_SECRET or AUTH_DEV_TOKENS is required")
	}
	return cfg, nil
}

// parseDevTokens parses "token:user,token:user" pairs.
func parseDevTokens(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	tokens := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, user, ok := strings.Cut(pair, ":")
		token = strings.TrimSpace(token)
		user = strings.TrimSpace(user)
		if !ok || token == "" || user == "" {
			return nil, fmt.Errorf("AUTH_DEV_TOKENS: malformed pair %q", pair)
		}
		tokens[token] = user
	}
	if len(tokens) == 0 {
		return nil, errors.New("AUTH_DEV_TOKENS: no token pairs")
	}
	return tokens, nil
}

// LoadCompletion reads AI provider settings from env. An empty
// COMPLETION_URL returns a zero config, which callers treat as
// "no provider configured".
func LoadCompletion() (CompletionConfig, error) {
	cfg := CompletionConfig{
		URL: strings.TrimSpace(os.Getenv("COMPLETION_URL")),
	}
	if cfg.URL == "" {
		return cfg, nil
	}
	var err error
	if cfg.Model, err = requiredString("COMPLETION_MODEL"); err != nil {
		return cfg, err
	}
	if cfg.Timeout, err = requiredDuration("COMPLETION_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.MaxAttempts, err = requiredInt("COMPLETION_MAX_ATTEMPTS"); err != nil {
		return cfg, err
	}
	if cfg.BaseDelay, err = requiredDuration("COMPLETION_BASE_DELAY"); err != nil {
		return cfg, err
	}
	if cfg.MaxDelay, err = requiredDuration("COMPLETION_MAX_DELAY"); err != nil {
		return cfg, err
	}
	if cfg.BreakerFailures, err = requiredInt("COMPLETION_BREAKER_FAILURES"); err != nil {
		return cfg, err
	}
	if cfg.BreakerCooldown, err = requiredDuration("COMPLETION_BREAKER_COOLDOWN"); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LoadObservability reads metrics HTTP server address from env.
func LoadObservability() (ObservabilityConfig, error) {
	addr, err := requiredString("OBS_ADDR")
	if err != nil {
		return ObservabilityConfig{}, err
	}
	return ObservabilityConfig{Addr: addr}, nil
}

func loadRedisTLSFromEnv() (*tls.Config, error) {
	caFile := strings.TrimSpace(os.Getenv("REDIS_TLS_CA_FILE"))
	certFile := strings.TrimSpace(os.Getenv("REDIS_TLS_CERT_FILE"))
	keyFile := strings.TrimSpace(os.Getenv("REDIS_TLS_KEY_FILE"))
	serverName := strings.TrimSpace(os.Getenv("REDIS_TLS_SERVER_NAME"))
	insecureStr := strings.TrimSpace(os.Getenv("REDIS_TLS_INSECURE_SKIP_VERIFY"))

	if caFile == "" && certFile == "" && keyFile == "" && serverName == "" && insecureStr == "" {
		return nil, nil
	}
	if (certFile == "") != (keyFile == "") {
		return nil, errors.New("REDIS_TLS_CERT_FILE and REDIS_TLS_KEY_FILE must be set together")
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: serverName,
	}

	if insecureStr != "" {
		insecure, err := strconv.ParseBool(insecureStr)
		if err != nil {
			return nil, fmt.Errorf("REDIS_TLS_INSECURE_SKIP_VERIFY: %w", err)
		}
		tlsConfig.InsecureSkipVerify = insecure
	}

	if caFile != "" {
		pemData, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read REDIS_TLS_CA_FILE: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, errors.New("REDIS_TLS_CA_FILE contains no valid certificates")
		}
		tlsConfig.RootCAs = pool
	}

	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load redis TLS keypair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func optionalDuration(name string) (*time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalInt(name string) (*int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalBool(name string) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return val, nil
}

func requiredString(name string) (string, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return raw, nil
}

func requiredInt(name string) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}

func requiredDuration(name string) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}

func requiredInt64(name string) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}
