package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"meterjob/internal/types"
)

const maxDirectoryBody = 1 << 20

// GraphClientConfig configures GraphDirectoryClient.
type GraphClientConfig struct {
	BaseURL    string // e.g. https://graph.microsoft.com
	APIVersion string // e.g. v1.0
	UserAgent  string
	Logger     *slog.Logger
}

// GraphDirectoryClient counts enabled users through the Microsoft Graph
// $count endpoint, authenticating separately inside every purchaser tenant.
type GraphDirectoryClient struct {
	base    *BaseClient
	tokens  TokenSourceFactory
	baseURL string
	version string
	logger  *slog.Logger
}

func NewGraphDirectoryClient(httpClient *http.Client, tokens TokenSourceFactory, cfg GraphClientConfig, opts ...BaseClientOption) *GraphDirectoryClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.APIVersion
	if version == "" {
		version = "v1.0"
	}

	opts = append([]BaseClientOption{WithUpstreamCode(types.ErrCodeUpstreamDirectory)}, opts...)
	return &GraphDirectoryClient{
		base:    NewBaseClient(httpClient, "graph", DefaultRetryPolicy(), cfg.UserAgent, opts...),
		tokens:  tokens,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		version: strings.Trim(version, "/"),
		logger:  logger,
	}
}

type graphErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CountActivePrincipals returns the number of users with accountEnabled
// true in tenantID. Every failure is a *types.DirectoryError.
func (g *GraphDirectoryClient) CountActivePrincipals(ctx context.Context, tenantID string) (int64, error) {
	if strings.TrimSpace(tenantID) == "" {
		return 0, &types.DirectoryError{Message: "purchaser tenant id is empty"}
	}

	q := url.Values{}
	q.Set("$filter", "accountEnabled eq true")
	reqURL := fmt.Sprintf("%s/%s/users/$count?%s", g.baseURL, g.version, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, &types.DirectoryError{TenantID: tenantID, Message: "building request", Err: err}
	}
	req.Header.Set("ConsistencyLevel", "eventual")
	req.Header.Set("Accept", "text/plain")

	if err := authorize(req, g.tokens.ForTenant(tenantID)); err != nil {
		return 0, &types.DirectoryError{TenantID: tenantID, Message: err.Error(), Err: err}
	}

	resp, err := g.base.Do(req)
	if err != nil {
		return 0, &types.DirectoryError{TenantID: tenantID, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDirectoryBody))
	if err != nil {
		return 0, &types.DirectoryError{TenantID: tenantID, HTTPStatus: resp.StatusCode, Message: "reading response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		var gerr graphErrorResponse
		if json.Unmarshal(body, &gerr) == nil && gerr.Error.Message != "" {
			msg = gerr.Error.Message
			if gerr.Error.Code != "" {
				msg = gerr.Error.Code + ": " + msg
			}
		}
		g.logger.WarnContext(ctx, "directory count rejected",
			"tenant_id", tenantID,
			"status", resp.StatusCode,
		)
		return 0, &types.DirectoryError{TenantID: tenantID, HTTPStatus: resp.StatusCode, Message: msg, RawBody: string(body)}
	}

	text := strings.TrimSpace(strings.TrimPrefix(string(body), "\ufeff"))
	count, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, &types.DirectoryError{TenantID: tenantID, HTTPStatus: resp.StatusCode, Message: "unexpected count body", RawBody: string(body), Err: err}
	}
	return count, nil
}
