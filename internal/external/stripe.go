package external

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"

	"meterjob/internal/types"
)

const stripeAPIBase = "https://api.stripe.com"

// StripeMeterConfig configures StripeMeterClient.
type StripeMeterConfig struct {
	SecretKey types.SecretString
	BaseURL   string
	UserAgent string
	Logger    *slog.Logger
}

// StripeMeterClient reports usage as Stripe billing meter events. The
// schedule's dimension is the meter event name and its subscription id is
// the Stripe customer id.
type StripeMeterClient struct {
	base      *BaseClient
	secretKey types.SecretString
	baseURL   string
	logger    *slog.Logger
}

func NewStripeMeterClient(httpClient *http.Client, cfg StripeMeterConfig, opts ...BaseClientOption) *StripeMeterClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts = append([]BaseClientOption{
		WithUpstreamCode(types.ErrCodeUpstreamBilling),
		WithFinalResponse(),
	}, opts...)
	return &StripeMeterClient{
		base:      NewBaseClient(httpClient, "stripe-meter", NoRetryPolicy(), cfg.UserAgent, opts...),
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

type stripeErrorResponse struct {
	Error *stripe.Error `json:"error"`
}

// SubmitUsage creates one meter event. The identifier is random, so Stripe's
// own de-duplication does not apply across passes.
func (s *StripeMeterClient) SubmitUsage(ctx context.Context, usage types.UsageRequest) (*types.UsageResult, error) {
	identifier := uuid.NewString()
	form := url.Values{}
	form.Set("event_name", usage.Dimension)
	form.Set("identifier", identifier)
	form.Set("timestamp", strconv.FormatInt(usage.EffectiveStartTime.Unix(), 10))
	form.Set("payload[stripe_customer_id]", usage.ResourceID)
	form.Set("payload[value]", strconv.FormatFloat(usage.Quantity, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/billing/meter_events", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build meter event request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.secretKey.Unmask())
	req.Header.Set("Stripe-Version", stripe.APIVersion)
	req.Header.Set("Idempotency-Key", identifier)

	resp, err := s.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBillingBody))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamBilling, "failed to read meter event response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rej := &types.BillingRejection{HTTPStatus: resp.StatusCode, RawBody: string(body)}
		var errResp stripeErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != nil {
			rej.Code = string(errResp.Error.Code)
			if rej.Code == "" {
				rej.Code = string(errResp.Error.Type)
			}
			rej.Message = errResp.Error.Msg
		}
		if rej.Code == "" {
			rej.Code = codeForStatus(resp.StatusCode)
		}
		s.logger.WarnContext(ctx, "meter event rejected",
			"customer_id", usage.ResourceID,
			"event_name", usage.Dimension,
			"status", resp.StatusCode,
			"code", rej.Code,
		)
		return nil, rej
	}

	var event stripe.BillingMeterEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamBilling, "undecodable meter event response", err)
	}

	return &types.UsageResult{
		UsageEventID:       event.Identifier,
		Status:             types.StatusAccepted,
		MessageTime:        time.Unix(event.Created, 0).UTC(),
		ResourceID:         usage.ResourceID,
		Quantity:           usage.Quantity,
		Dimension:          event.EventName,
		EffectiveStartTime: time.Unix(event.Timestamp, 0).UTC(),
		PlanID:             usage.PlanID,
	}, nil
}
