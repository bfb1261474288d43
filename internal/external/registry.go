package external

import (
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"

	"meterjob/internal/config"
)

// ClientRegistry holds the remote-service clients used by one process.
type ClientRegistry struct {
	Directory DirectoryClient
	Billing   BillingClient
	Email     EmailProvider
}

// RegistryOption overrides a client the registry would otherwise build.
type RegistryOption func(*ClientRegistry)

// WithEmailProvider replaces the configured email provider, e.g. with a
// queue-backed sender.
func WithEmailProvider(p EmailProvider) RegistryOption {
	return func(r *ClientRegistry) {
		r.Email = p
	}
}

// stubDirectoryCount is what the stub directory reports in local runs.
const stubDirectoryCount = 1

// NewClientRegistry builds real clients, or stubs when cfg.IsTestMode is set
// or APP_ENV is local.
func NewClientRegistry(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger, opts ...RegistryOption) (*ClientRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var reg *ClientRegistry
	if cfg.IsTestMode || cfg.Environment == "local" {
		logger.Info("initializing external clients in STUB mode",
			"is_test_mode", cfg.IsTestMode,
			"environment", cfg.Environment,
		)
		stubLogger := logger.With("mode", "stub")
		reg = &ClientRegistry{
			Directory: NewStubDirectoryClient(stubLogger, stubDirectoryCount),
			Billing:   NewStubBillingClient(stubLogger),
			Email:     NewStubEmailProvider(stubLogger),
		}
	} else {
		var err error
		reg, err = newProductionRegistry(cfg, awsCfg, logger)
		if err != nil {
			return nil, err
		}
	}

	for _, opt := range opts {
		opt(reg)
	}
	return reg, nil
}

func newProductionRegistry(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (*ClientRegistry, error) {
	userAgent := cfg.Build.UserAgent(cfg.Service)
	reg := &ClientRegistry{}

	graphHTTP := NewHTTPClient(cfg.Graph.Timeout)
	graphTokens := NewTenantCredentials(CredentialConfig{
		Authority:    cfg.Graph.Authority,
		ClientID:     cfg.Graph.AppID,
		ClientSecret: cfg.Graph.AppClientSecret,
		Scopes:       []string{cfg.Graph.Scope},
		HTTPClient:   graphHTTP,
	})
	reg.Directory = NewGraphDirectoryClient(graphHTTP, graphTokens, GraphClientConfig{
		BaseURL:    cfg.Graph.APIURL,
		APIVersion: cfg.Graph.APIVersion,
		UserAgent:  userAgent,
		Logger:     logger.With("client", "graph"),
	})

	switch cfg.Billing.Provider {
	case "marketplace":
		mpHTTP := NewHTTPClient(cfg.Marketplace.Timeout)
		mpTokens := NewTenantCredentials(CredentialConfig{
			Authority:    cfg.Marketplace.AuthEndpoint,
			ClientID:     cfg.Marketplace.ClientID,
			ClientSecret: cfg.Marketplace.ClientSecret,
			Scopes:       []string{cfg.Marketplace.Resource + "/.default"},
			HTTPClient:   mpHTTP,
		})
		reg.Billing = NewMarketplaceMeteringClient(mpHTTP, mpTokens, MarketplaceClientConfig{
			BaseURL:    cfg.Marketplace.APIBaseURL,
			APIVersion: cfg.Marketplace.APIVersion,
			TenantID:   cfg.Marketplace.TenantID,
			UserAgent:  userAgent,
			Logger:     logger.With("client", "marketplace"),
		})
	case "stripe":
		reg.Billing = NewStripeMeterClient(NewHTTPClient(cfg.Marketplace.Timeout), StripeMeterConfig{
			SecretKey: cfg.Billing.StripeSecretKey,
			BaseURL:   cfg.Billing.StripeBaseURL,
			UserAgent: userAgent,
			Logger:    logger.With("client", "stripe"),
		})
	default:
		return nil, fmt.Errorf("unknown billing provider %q", cfg.Billing.Provider)
	}

	switch cfg.Email.Provider {
	case "ses":
		reg.Email = NewSESClient(awsCfg, SESClientConfig{Logger: logger.With("client", "ses")})
	case "stub":
		reg.Email = NewStubEmailProvider(logger.With("client", "email-stub"))
	}

	logger.Info("initialized external clients",
		"environment", cfg.Environment,
		"billing_provider", cfg.Billing.Provider,
		"email_provider", cfg.Email.Provider,
	)
	return reg, nil
}
