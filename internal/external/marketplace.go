package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"meterjob/internal/types"
)

const maxBillingBody = 1 << 20

// MarketplaceClientConfig configures MarketplaceMeteringClient.
type MarketplaceClientConfig struct {
	BaseURL    string // e.g. https://marketplaceapi.microsoft.com/api
	APIVersion string // e.g. 2018-08-31
	// TenantID is the publisher tenant the access token is issued in.
	TenantID  string
	UserAgent string
	Logger    *slog.Logger
}

// MarketplaceMeteringClient posts usage events to the marketplace metering
// service.
type MarketplaceMeteringClient struct {
	base     *BaseClient
	tokens   TokenSourceFactory
	endpoint string
	tenantID string
	logger   *slog.Logger
}

func NewMarketplaceMeteringClient(httpClient *http.Client, tokens TokenSourceFactory, cfg MarketplaceClientConfig, opts ...BaseClientOption) *MarketplaceMeteringClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.APIVersion
	if version == "" {
		version = "2018-08-31"
	}
	q := url.Values{}
	q.Set("api-version", version)

	opts = append([]BaseClientOption{
		WithUpstreamCode(types.ErrCodeUpstreamBilling),
		WithFinalResponse(),
	}, opts...)
	return &MarketplaceMeteringClient{
		base:     NewBaseClient(httpClient, "marketplace-metering", NoRetryPolicy(), cfg.UserAgent, opts...),
		tokens:   tokens,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/usageEvent?" + q.Encode(),
		tenantID: cfg.TenantID,
		logger:   logger,
	}
}

type marketplaceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Target  string `json:"target"`
}

// SubmitUsage posts one usage event. Non-2xx answers become
// *types.BillingRejection carrying the API's error code; transport failures
// are returned as *types.AppError.
func (m *MarketplaceMeteringClient) SubmitUsage(ctx context.Context, usage types.UsageRequest) (*types.UsageResult, error) {
	payload, err := json.Marshal(usage)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode usage event", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build usage request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-ms-requestid", uuid.NewString())
	req.Header.Set("x-ms-correlationid", correlationID(ctx))

	if err := authorize(req, m.tokens.ForTenant(m.tenantID)); err != nil {
		return nil, err
	}

	resp, err := m.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBillingBody))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamBilling, "failed to read usage response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rej := &types.BillingRejection{HTTPStatus: resp.StatusCode, RawBody: string(body)}
		var apiErr marketplaceError
		if json.Unmarshal(body, &apiErr) == nil {
			rej.Code = apiErr.Code
			rej.Message = apiErr.Message
		}
		if rej.Code == "" {
			rej.Code = codeForStatus(resp.StatusCode)
		}
		if rej.Message == "" {
			rej.Message = http.StatusText(resp.StatusCode)
		}
		m.logger.WarnContext(ctx, "usage event rejected",
			"resource_id", usage.ResourceID,
			"dimension", usage.Dimension,
			"status", resp.StatusCode,
			"code", rej.Code,
		)
		return nil, rej
	}

	var result types.UsageResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamBilling, fmt.Sprintf("undecodable usage response (%d)", resp.StatusCode), err)
	}
	return &result, nil
}

// codeForStatus names a rejection when the body carried no code.
func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BadArgument"
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusNotFound:
		return "NotFound"
	case http.StatusConflict:
		return "Conflict"
	case http.StatusTooManyRequests:
		return "TooManyRequests"
	default:
		return strings.ReplaceAll(http.StatusText(status), " ", "")
	}
}

// correlationID reuses the pass's run id when it is a UUID so that every
// usage event of one pass shares a correlation id.
func correlationID(ctx context.Context) string {
	if id, err := uuid.Parse(types.GetRunID(ctx)); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
