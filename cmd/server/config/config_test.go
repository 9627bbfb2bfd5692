package config

import (
	"testing"
	"time"
)

func TestLoadGateway(t *testing.T) {
	t.Setenv("GATEWAY_ADDR", ":8080")
	t.Setenv("GATEWAY_IDLE_TIMEOUT", "60s")
	t.Setenv("GATEWAY_SWEEP_INTERVAL", "30s")
	t.Setenv("GATEWAY_RATE_LIMIT_INTERVAL", "5ms")
	t.Setenv("GATEWAY_RATE_LIMIT_BURST", "10")

	cfg, err := LoadGateway()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Addr)
	}
	if cfg.IdleTimeout != time.Minute || cfg.SweepInterval != 30*time.Second {
		t.Fatalf("unexpected lifecycle settings: %+v", cfg)
	}
	if cfg.RateLimitInterval != 5*time.Millisecond || cfg.RateLimitBurst != 10 {
		t.Fatalf("unexpected rate limit settings: %+v", cfg)
	}
	if cfg.HistoryLimit != 0 {
		t.Fatalf("expected zero history limit by default, got %d", cfg.HistoryLimit)
	}
}

func TestLoadGatewayHistoryLimit(t *testing.T) {
	t.Setenv("GATEWAY_ADDR", ":8080")
	t.Setenv("GATEWAY_IDLE_TIMEOUT", "60s")
	t.Setenv("GATEWAY_SWEEP_INTERVAL", "30s")
	t.Setenv("GATEWAY_RATE_LIMIT_INTERVAL", "5ms")
	t.Setenv("GATEWAY_RATE_LIMIT_BURST", "10")
	t.Setenv("GATEWAY_HISTORY_LIMIT", "25")

	cfg, err := LoadGateway()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HistoryLimit != 25 {
		t.Fatalf("unexpected history limit: %d", cfg.HistoryLimit)
	}
}

func TestLoadGatewayMissingEnv(t *testing.T) {
	t.Setenv("GATEWAY_ADDR", "")
	if _, err := LoadGateway(); err == nil {
		t.Fatalf("expected error for missing addr")
	}
}

func TestLoadAuth(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "hunter2")
	t.Setenv("AUTH_JWT_ALG", "HS512")

	cfg, err := LoadAuth()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.JWTSecret != "hunter2" || cfg.JWTAlg != "HS512" {
		t.Fatalf("unexpected auth cfg: %+v", cfg)
	}

	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("AUTH_DEV_TOKENS", "")
	if _, err := LoadAuth(); err == nil {
		t.Fatalf("expected error when neither secret nor dev tokens set")
	}
}

func TestLoadAuthDevTokens(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("AUTH_DEV_TOKENS", "tok-1:alice, tok-2:bob")

	cfg, err := LoadAuth()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DevTokens["tok-1"] != "alice" || cfg.DevTokens["tok-2"] != "bob" {
		t.Fatalf("unexpected dev tokens: %+v", cfg.DevTokens)
	}

	t.Setenv("AUTH_DEV_TOKENS", "tok-without-user")
	if _, err := LoadAuth(); err == nil {
		t.Fatalf("expected error for malformed token pair")
	}
}

func TestLoadCompletion(t *testing.T) {
	t.Setenv("COMPLETION_URL", "http://provider.local/v1/chat")
	t.Setenv("COMPLETION_MODEL", "small-1")
	t.Setenv("COMPLETION_TIMEOUT", "10s")
	t.Setenv("COMPLETION_MAX_ATTEMPTS", "3")
	t.Setenv("COMPLETION_BASE_DELAY", "100ms")
	t.Setenv("COMPLETION_MAX_DELAY", "2s")
	t.Setenv("COMPLETION_BREAKER_FAILURES", "5")
	t.Setenv("COMPLETION_BREAKER_COOLDOWN", "30s")

	cfg, err := LoadCompletion()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.URL != "http://provider.local/v1/chat" || cfg.Model != "small-1" {
		t.Fatalf("unexpected provider settings: %+v", cfg)
	}
	if cfg.Timeout != 10*time.Second || cfg.MaxAttempts != 3 {
		t.Fatalf("unexpected retry settings: %+v", cfg)
	}
	if cfg.BaseDelay != 100*time.Millisecond || cfg.MaxDelay != 2*time.Second {
		t.Fatalf("unexpected delays: %+v", cfg)
	}
	if cfg.BreakerFailures != 5 || cfg.BreakerCooldown != 30*time.Second {
		t.Fatalf("unexpected breaker settings: %+v", cfg)
	}
}

func TestLoadCompletionUnconfigured(t *testing.T) {
	t.Setenv("COMPLETION_URL", "")

	cfg, err := LoadCompletion()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.URL != "" {
		t.Fatalf("expected empty url, got %q", cfg.URL)
	}
}

func TestLoadCompletionPartialEnv(t *testing.T) {
	t.Setenv("COMPLETION_URL", "http://provider.local/v1/chat")
	t.Setenv("COMPLETION_MODEL", "")
	if _, err := LoadCompletion(); err == nil {
		t.Fatalf("expected error for missing model")
	}
}

func TestLoadObservability(t *testing.T) {
	t.Setenv("OBS_ADDR", ":9999")

	cfg, err := LoadObservability()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("unexpected observability addr: %+v", cfg)
	}
}

func TestLoadRedis(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_STREAM", "s")
	t.Setenv("REDIS_HEALTHCHECK_TIMEOUT", "2s")
	t.Setenv("REDIS_PRESENCE_TTL", "10m")
	t.Setenv("REDIS_STREAM_MAXLEN", "1000")

	cfg, err := LoadRedis()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.URL != "redis://localhost:6379/0" {
		t.Fatalf("unexpected redis url: %s", cfg.URL)
	}
	if cfg.Stream != "s" {
		t.Fatalf("unexpected stream: %s", cfg.Stream)
	}
	if cfg.HealthcheckTimeout != 2*time.Second {
		t.Fatalf("unexpected healthcheck timeout: %v", cfg.HealthcheckTimeout)
	}
	if cfg.PresenceTTL != 10*time.Minute {
		t.Fatalf("unexpected presence ttl: %v", cfg.PresenceTTL)
	}
	if cfg.StreamMaxLen != 1000 {
		t.Fatalf("unexpected stream maxlen: %d", cfg.StreamMaxLen)
	}
}

func TestLoadRedis_WithOptionalFields(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_HEALTHCHECK_TIMEOUT", "1s")
	t.Setenv("REDIS_PRESENCE_TTL", "1m")
	t.Setenv("REDIS_STREAM_MAXLEN", "10")
	t.Setenv("REDIS_DIAL_TIMEOUT", "3s")
	t.Setenv("REDIS_READ_TIMEOUT", "4s")
	t.Setenv("REDIS_WRITE_TIMEOUT", "5s")
	t.Setenv("REDIS_POOL_SIZE", "9")
	t.Setenv("REDIS_MIN_IDLE_CONNS", "2")
	t.Setenv("REDIS_MAX_RETRIES", "3")
	t.Setenv("REDIS_OTEL", "true")

	cfg, err := LoadRedis()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DialTimeout == nil || *cfg.DialTimeout != 3*time.Second {
		t.Fatalf("unexpected dial timeout: %v", cfg.DialTimeout)
	}
	if cfg.ReadTimeout == nil || *cfg.ReadTimeout != 4*time.Second {
		t.Fatalf("unexpected read timeout: %v", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout == nil || *cfg.WriteTimeout != 5*time.Second {
		t.Fatalf("unexpected write timeout: %v", cfg.WriteTimeout)
	}
	if cfg.PoolSize == nil || *cfg.PoolSize != 9 {
		t.Fatalf("unexpected pool size: %v", cfg.PoolSize)
	}
	if cfg.MinIdleConns == nil || *cfg.MinIdleConns != 2 {
		t.Fatalf("unexpected min idle: %v", cfg.MinIdleConns)
	}
	if cfg.MaxRetries == nil || *cfg.MaxRetries != 3 {
		t.Fatalf("unexpected max retries: %v", cfg.MaxRetries)
	}
	if !cfg.EnableOTel {
		t.Fatalf("expected otel enabled")
	}
}

func TestLoadRedis_MissingURL(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	if _, err := LoadRedis(); err == nil {
		t.Fatalf("expected missing url error")
	}
}

func TestLoadRedisTLS_NoSettingsReturnsNil(t *testing.T) {
	if cfg, err := loadRedisTLSFromEnv(); err != nil || cfg != nil {
		t.Fatalf("expected nil tls config, got %#v err %v", cfg, err)
	}
}

func TestLoadRedisTLS_MismatchedKeyPair(t *testing.T) {
	t.Setenv("REDIS_TLS_CERT_FILE", "cert")
	if _, err := loadRedisTLSFromEnv(); err == nil {
		t.Fatalf("expected cert/key mismatch error")
	}
}

func TestLoadRedisTLS_InvalidInsecureFlag(t *testing.T) {
	t.Setenv("REDIS_TLS_INSECURE_SKIP_VERIFY", "notabool")
	if _, err := loadRedisTLSFromEnv(); err == nil {
		t.Fatalf("expected parse bool error")
	}
}

func TestLoadRedisTLS_InsecureTrue(t *testing.T) {
	t.Setenv("REDIS_TLS_INSECURE_SKIP_VERIFY", "true")
	cfg, err := loadRedisTLSFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil || !cfg.InsecureSkipVerify {
		t.Fatalf("expected insecure tls config, got %#v", cfg)
	}
}

func TestLoadRedisTLS_ReadCAError(t *testing.T) {
	t.Setenv("REDIS_TLS_CA_FILE", "/no/such/file")
	if _, err := loadRedisTLSFromEnv(); err == nil {
		t.Fatalf("expected read error for missing CA file")
	}
}

func TestOptionalAndRequiredHelpers(t *testing.T) {
	t.Setenv("X_OPT_DUR", "-1ms")
	if _, err := optionalDuration("X_OPT_DUR"); err == nil {
		t.Fatalf("expected negative duration error")
	}
	t.Setenv("X_OPT_INT", "-1")
	if _, err := optionalInt("X_OPT_INT"); err == nil {
		t.Fatalf("expected negative int error")
	}
	t.Setenv("X_OPT_BOOL", "notbool")
	if _, err := optionalBool("X_OPT_BOOL"); err == nil {
		t.Fatalf("expected bool parse error")
	}

	t.Setenv("X_REQ_INT64", "notint")
	if _, err := requiredInt64("X_REQ_INT64"); err == nil {
		t.Fatalf("expected int64 parse error")
	}
	t.Setenv("X_REQ_INT64", "-1")
	if _, err := requiredInt64("X_REQ_INT64"); err == nil {
		t.Fatalf("expected negative int64 error")
	}

	t.Setenv("X_REQ_INT", "-1")
	if _, err := requiredInt("X_REQ_INT"); err == nil {
		t.Fatalf("expected negative int error")
	}

	t.Setenv("X_REQ_DUR", "bad")
	if _, err := requiredDuration("X_REQ_DUR"); err == nil {
		t.Fatalf("expected bad duration error")
	}
}

func TestLoadRedis_InvalidRequiredFields(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_HEALTHCHECK_TIMEOUT", "bad")
	t.Setenv("REDIS_PRESENCE_TTL", "10m")
	t.Setenv("REDIS_STREAM_MAXLEN", "1000")
	if _, err := LoadRedis(); err == nil {
		t.Fatalf("expected error for bad healthcheck timeout")
	}

	t.Setenv("REDIS_HEALTHCHECK_TIMEOUT", "1s")
	t.Setenv("REDIS_PRESENCE_TTL", "bad")
	if _, err := LoadRedis(); err == nil {
		t.Fatalf("expected error for bad presence ttl")
	}

	t.Setenv("REDIS_PRESENCE_TTL", "1s")
	t.Setenv("REDIS_STREAM_MAXLEN", "notint")
	if _, err := LoadRedis(); err == nil {
		t.Fatalf("expected error for bad stream maxlen")
	}
}
