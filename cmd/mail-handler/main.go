// Package main is the entry point for the mail handler service.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/citypay/mail-handler/internal/brand"
	"github.com/citypay/mail-handler/internal/config"
	"github.com/citypay/mail-handler/internal/dispatch"
	"github.com/citypay/mail-handler/internal/handler"
	"github.com/citypay/mail-handler/internal/provider"
	"github.com/citypay/mail-handler/internal/provider/graph"
	"github.com/citypay/mail-handler/internal/provider/ses"
	"github.com/citypay/mail-handler/internal/provider/stdout"
	"github.com/citypay/mail-handler/internal/server"
	handlertls "github.com/citypay/mail-handler/internal/tls"
	"github.com/citypay/mail-handler/internal/verify"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	setupLogger(cfg.Logging.Level)

	// Load or generate TLS certificates when TLS is enabled
	var tlsConfig *tls.Config
	if cfg.TLS.Enabled {
		tlsConfig, err = handlertls.LoadOrGenerateTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			slog.Error("failed to setup TLS", "error", err)
			os.Exit(1)
		}
	}

	// Select email delivery provider
	prov := selectProvider(cfg)

	resolver := brand.NewResolver(brand.ResolverConfig{
		Root:   cfg.Branding.AssetRoot,
		Strict: cfg.Branding.StrictAssets,
	})

	verifier := verify.NewClient(verify.ClientConfig{
		Endpoint: cfg.Verify.Endpoint,
		Timeout:  time.Duration(cfg.Verify.TimeoutSeconds) * time.Second,
	})

	dispatcher := dispatch.New(prov, stdout.New(), resolver)

	srv := server.New(server.ServerConfig{
		ListenAddr: cfg.Server.Listen,
		Handler:    handler.New(dispatcher, verifier),
		TLSConfig:  tlsConfig,
		AuthToken:  cfg.Server.AuthToken,
	})

	slog.Info("starting mail-handler",
		"listen", cfg.Server.Listen,
		"provider", prov.Name(),
		"auth_enabled", cfg.Server.AuthToken != "",
		"tls_enabled", cfg.TLS.Enabled,
	)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		slog.Info("received signal, initiating shutdown", "signal", sig)
		cancel()
	}()

	// Start the server (blocks until context is cancelled)
	if err := srv.ListenAndServe(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("mail-handler stopped")
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// selectProvider chooses the email delivery backend based on configuration.
// If the PROVIDER setting is present, it takes precedence. Otherwise the
// first fully configured backend wins, falling back to stdout.
func selectProvider(cfg *config.Config) provider.Provider {
	switch cfg.Provider {
	case "ses":
		if !cfg.SESConfigured() {
			slog.Error("SES provider selected but SES_REGION is required")
			os.Exit(1)
		}
		slog.Info("using AWS SES provider",
			"region", cfg.SES.Region,
		)
		p, err := ses.New(context.Background(), ses.SESProviderConfig{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
		})
		if err != nil {
			slog.Error("failed to create SES provider", "error", err)
			os.Exit(1)
		}
		return p

	case "msgraph":
		if !cfg.GraphConfigured() {
			slog.Error("Graph provider selected but GRAPH_TENANT_ID, GRAPH_CLIENT_ID, GRAPH_CLIENT_SECRET, and GRAPH_SENDER are required")
			os.Exit(1)
		}
		slog.Info("using Microsoft Graph provider",
			"sender", cfg.Graph.Sender,
		)
		return graph.New(graph.GraphProviderConfig{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
			Sender:       cfg.Graph.Sender,
		})

	case "stdout":
		slog.Info("using stdout provider")
		return stdout.New()

	case "":
		// Auto-detection fallback
		if cfg.SESConfigured() {
			slog.Info("using AWS SES provider (auto-detected)",
				"region", cfg.SES.Region,
			)
			p, err := ses.New(context.Background(), ses.SESProviderConfig{
				Region:          cfg.SES.Region,
				AccessKeyID:     cfg.SES.AccessKeyID,
				SecretAccessKey: cfg.SES.SecretAccessKey,
			})
			if err != nil {
				slog.Error("failed to create SES provider", "error", err)
				os.Exit(1)
			}
			return p
		}
		if cfg.GraphConfigured() {
			slog.Info("using Microsoft Graph provider (auto-detected)",
				"sender", cfg.Graph.Sender,
			)
			return graph.New(graph.GraphProviderConfig{
				TenantID:     cfg.Graph.TenantID,
				ClientID:     cfg.Graph.ClientID,
				ClientSecret: cfg.Graph.ClientSecret,
				Sender:       cfg.Graph.Sender,
			})
		}
		slog.Info("no provider configured, using stdout provider")
		return stdout.New()

	default:
		slog.Error("unknown provider", "provider", cfg.Provider)
		os.Exit(1)
		return nil
	}
}
