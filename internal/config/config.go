// Package config defines the process configuration for the metered trigger job.
// Configuration is loaded once at cold start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Dynamic switches that operators flip at runtime (billing enabled, per
// frequency enablement, email toggles) are not part of Config; they are read
// from the application_configuration table on every pass, see LoadFeatureFlags.
package config

import (
	"time"

	"meterjob/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the section they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"meter-trigger"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	IsTestMode  bool   `envconfig:"IS_TEST_MODE" default:"false"`

	Database      DatabaseConfig
	AWS           AWSConfig
	Marketplace   MarketplaceConfig
	Graph         GraphConfig
	Billing       BillingConfig
	Email         EmailConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"4"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"5s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS regional configuration and resource identifiers.
type AWSConfig struct {
	Region            string `envconfig:"AWS_REGION" default:"us-east-1"`
	NotificationQueue string `envconfig:"SQS_NOTIFICATIONS" validate:"omitempty,url"`

	// LocalStack support, empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// MarketplaceConfig holds the publisher credentials used against the
// marketplace metering API.
type MarketplaceConfig struct {
	AuthEndpoint string       `envconfig:"MARKETPLACE_AD_AUTH_ENDPOINT" default:"https://login.microsoftonline.com" validate:"url"`
	TenantID     string       `envconfig:"MARKETPLACE_TENANT_ID" validate:"required_if=Enabled true"`
	ClientID     string       `envconfig:"MARKETPLACE_CLIENT_ID" validate:"required_if=Enabled true"`
	ClientSecret SecretString `envconfig:"MARKETPLACE_CLIENT_SECRET" validate:"required_if=Enabled true"`
	// Resource is the marketplace API application id; the token scope is
	// Resource + "/.default".
	Resource   string        `envconfig:"MARKETPLACE_RESOURCE" default:"20e940b3-4c77-4b0b-9a53-9e16a1b010a7"`
	APIBaseURL string        `envconfig:"MARKETPLACE_API_URL" default:"https://marketplaceapi.microsoft.com/api" validate:"url"`
	APIVersion string        `envconfig:"MARKETPLACE_API_VERSION" default:"2018-08-31"`
	Timeout    time.Duration `envconfig:"MARKETPLACE_TIMEOUT" default:"30s"`

	// Enabled is derived from Billing.Provider during load.
	Enabled bool `ignored:"true"`
}

// GraphConfig holds the directory application registration used to count
// active principals inside purchaser tenants.
type GraphConfig struct {
	APIURL          string        `envconfig:"GRAPH_API_URL" default:"https://graph.microsoft.com" validate:"url"`
	APIVersion      string        `envconfig:"GRAPH_API_VERSION" default:"v1.0"`
	AppID           string        `envconfig:"GRAPH_APP_ID" validate:"required"`
	AppClientSecret SecretString  `envconfig:"GRAPH_APP_CLIENT_SECRET" validate:"required"`
	Scope           string        `envconfig:"GRAPH_SCOPE" default:"https://graph.microsoft.com/.default"`
	Authority       string        `envconfig:"GRAPH_AUTHORITY" default:"https://login.microsoftonline.com" validate:"url"`
	Timeout         time.Duration `envconfig:"GRAPH_TIMEOUT" default:"15s"`
}

// BillingConfig selects the usage billing backend.
type BillingConfig struct {
	Provider        string       `envconfig:"BILLING_PROVIDER" default:"marketplace" validate:"oneof=marketplace stripe"`
	StripeSecretKey SecretString `envconfig:"STRIPE_SECRET_KEY" validate:"required_if=Provider stripe"`
	StripeBaseURL   string       `envconfig:"STRIPE_BASE_URL" default:"https://api.stripe.com" validate:"url"`
}

// EmailConfig holds scheduler notification delivery settings.
type EmailConfig struct {
	Provider    string   `envconfig:"EMAIL_PROVIDER" default:"ses" validate:"oneof=ses sqs stub"`
	FromAddress string   `envconfig:"EMAIL_FROM_ADDRESS" default:"scheduler-noreply@meterjob.local" validate:"email"`
	FromName    string   `envconfig:"EMAIL_FROM_NAME" default:"Metered Scheduler"`
	Recipients  []string `envconfig:"SCHEDULER_EMAIL_TO" validate:"dive,email"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"MeteredTrigger"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
