// Command server starts the VCF session gateway HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vcfgate/internal/api"
	"vcfgate/internal/auth"
	"vcfgate/internal/config"
	"vcfgate/internal/observability/logging"
	"vcfgate/internal/observability/metrics"
	"vcfgate/internal/server"
	"vcfgate/internal/upstream"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log output format (json or text)")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	vcfBaseURL := flag.String("vcf-base-url", "", "VCF API base URL")
	vcfTimeout := flag.Float64("vcf-timeout-seconds", 0, "per-attempt VCF request timeout in seconds")
	vcfRetryCount := flag.Int("vcf-retry-count", -1, "extra attempts after a transport-level VCF failure")
	vcfSkipVerify := flag.Bool("vcf-skip-verify", false, "disable VCF TLS certificate verification")
	sessionTTL := flag.Int("session-ttl-seconds", 0, "session lifetime in seconds")
	corsOrigins := flag.String("cors-allow-origins", "", "comma separated origins allowed to call the API")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	loginLimit := flag.Int("rate-login-limit", 0, "maximum login attempts per window for a single IP")
	loginWindow := flag.Duration("rate-login-window", 0, "window for counting login attempts")
	redisAddr := flag.String("rate-redis-addr", "", "Redis address for distributed login throttling")
	redisPassword := flag.String("rate-redis-password", "", "Redis password for distributed login throttling")
	redisTimeout := flag.Duration("rate-redis-timeout", 0, "timeout for Redis throttle operations")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if v := strings.TrimSpace(*addr); v != "" {
		cfg.Addr = v
	}
	if v := strings.TrimSpace(*logLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(*logFormat); v != "" {
		cfg.LogFormat = v
	}
	if v := strings.TrimSpace(*tlsCert); v != "" {
		cfg.TLSCertFile = v
	}
	if v := strings.TrimSpace(*tlsKey); v != "" {
		cfg.TLSKeyFile = v
	}
	if v := strings.TrimSpace(*vcfBaseURL); v != "" {
		cfg.VCFBaseURL = v
	}
	if *vcfTimeout > 0 {
		cfg.VCFTimeoutSeconds = *vcfTimeout
	}
	if *vcfRetryCount >= 0 {
		cfg.VCFRetryCount = *vcfRetryCount
	}
	if *vcfSkipVerify {
		cfg.VCFVerifySSL = false
	}
	if *sessionTTL > 0 {
		cfg.SessionTTLSeconds = *sessionTTL
	}
	if v := strings.TrimSpace(*corsOrigins); v != "" {
		cfg.CORSAllowOrigins = splitAndTrim(v)
	}
	if *globalRPS > 0 {
		cfg.RateGlobalRPS = *globalRPS
	}
	if *globalBurst > 0 {
		cfg.RateGlobalBurst = *globalBurst
	}
	if *loginLimit > 0 {
		cfg.RateLoginLimit = *loginLimit
	}
	if *loginWindow > 0 {
		cfg.RateLoginWindow = *loginWindow
	}
	if v := strings.TrimSpace(*redisAddr); v != "" {
		cfg.RateRedisAddr = v
	}
	if v := strings.TrimSpace(*redisPassword); v != "" {
		cfg.RateRedisPass = v
	}
	if *redisTimeout > 0 {
		cfg.RateRedisTimeout = *redisTimeout
	}

	logger := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	recorder := metrics.Default()

	client, err := upstream.New(upstream.Config{
		BaseURL:            cfg.VCFBaseURL,
		Timeout:            cfg.VCFTimeout(),
		RetryCount:         cfg.VCFRetryCount,
		InsecureSkipVerify: !cfg.VCFVerifySSL,
		Logger:             logging.WithComponent(logger, "upstream"),
		Metrics:            recorder,
	})
	if err != nil {
		logger.Error("failed to initialise upstream client", "error", err)
		os.Exit(1)
	}

	store := auth.NewStore(cfg.SessionTTL(), auth.WithMetrics(recorder))
	gateway := auth.NewGateway(client, store, logging.WithComponent(logger, "auth"))
	handler := api.NewHandler(gateway, client, logging.WithComponent(logger, "api"))

	srv, err := server.New(handler, server.Config{
		Addr: cfg.Addr,
		TLS: server.TLSConfig{
			CertFile: cfg.TLSCertFile,
			KeyFile:  cfg.TLSKeyFile,
		},
		RateLimit: server.RateLimitConfig{
			GlobalRPS:     cfg.RateGlobalRPS,
			GlobalBurst:   cfg.RateGlobalBurst,
			LoginLimit:    cfg.RateLoginLimit,
			LoginWindow:   cfg.RateLoginWindow,
			RedisAddr:     cfg.RateRedisAddr,
			RedisPassword: cfg.RateRedisPass,
			RedisTimeout:  cfg.RateRedisTimeout,
		},
		CORS:    server.CORSConfig{AllowedOrigins: cfg.CORSAllowOrigins},
		Logger:  logger,
		Metrics: recorder,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("VCF gateway listening",
			"addr", cfg.Addr,
			"upstream", cfg.VCFBaseURL,
			"session_ttl_seconds", cfg.SessionTTLSeconds)
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			logger.Info("TLS enabled", "cert_file", cfg.TLSCertFile)
		}
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errs:
		logger.Error("server error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
