package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/relaypoint/message-relay/internal/config"
	"github.com/relaypoint/message-relay/internal/domain"
	"github.com/relaypoint/message-relay/internal/resilience"
)

const (
	providerName = "twilio"

	// statusHost is the fixed API host combined with the relative uri the
	// provider returns to form the message status URI.
	statusHost = "https://api.twilio.com"

	maxResponseBytes = 64 * 1024
)

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customises the behaviour of the Twilio client.
type Option func(*Twilio)

// WithHTTPClient overrides the HTTP client used to talk to the provider.
func WithHTTPClient(client HTTPClient) Option {
	return func(t *Twilio) {
		if client != nil {
			t.httpClient = client
		}
	}
}

// Twilio implements domain.MessageProvider against Twilio's Messages API.
// All outbound calls go through the resilience pipeline and share one
// circuit breaker instance.
type Twilio struct {
	accountSID          string
	authToken           string
	baseURL             string
	from                string
	messagingServiceSID string

	httpClient HTTPClient
	pipeline   *resilience.Pipeline[*messageResource]
}

// NewTwilio constructs a Twilio-backed message provider. Missing credentials
// or an ambiguous sender identity are operator errors and fail construction.
func NewTwilio(cfg config.TwilioConfig, pipelineCfg resilience.PipelineConfig, breaker *resilience.Breaker, opts ...Option) (*Twilio, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" {
		return nil, domain.NewConfigurationError("account SID is required")
	}
	if strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, domain.NewConfigurationError("auth token is required")
	}

	from := strings.TrimSpace(cfg.From)
	serviceSID := strings.TrimSpace(cfg.MessagingServiceSID)
	if from == "" && serviceSID == "" {
		return nil, domain.NewConfigurationError("either a from number or a messaging service SID is required")
	}
	if from != "" && serviceSID != "" {
		return nil, domain.NewConfigurationError("from number and messaging service SID are mutually exclusive")
	}

	if pipelineCfg.AttemptTimeout <= 0 {
		pipelineCfg.AttemptTimeout = cfg.RequestTimeout
	}

	t := &Twilio{
		accountSID:          strings.TrimSpace(cfg.AccountSID),
		authToken:           strings.TrimSpace(cfg.AuthToken),
		baseURL:             strings.TrimRight(cfg.BaseURL, "/"),
		from:                from,
		messagingServiceSID: serviceSID,
		// No client-level timeout: the pipeline bounds each attempt with a
		// context so a cancelled attempt releases its connection.
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		pipeline: resilience.NewPipeline[*messageResource](pipelineCfg, breaker),
	}

	if t.baseURL == "" {
		t.baseURL = "https://api.twilio.com/2010-04-01"
	}

	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	return t, nil
}

// messageResource is the subset of the provider's response the relay needs.
type messageResource struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	URI    string `json:"uri"`
}

// Send relays a validated request to the provider through the resilience
// pipeline and maps the wire response into a SendResult or a *SendError.
func (t *Twilio) Send(ctx context.Context, req domain.SendRequest) (*domain.SendResult, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", t.baseURL, url.PathEscape(t.accountSID))
	form := t.buildForm(req)

	res, err := t.pipeline.Execute(ctx, func(ctx context.Context) (*messageResource, error) {
		return t.attempt(ctx, endpoint, form)
	})
	if err != nil {
		return nil, err
	}

	result := &domain.SendResult{
		Provider:  providerName,
		MessageID: res.SID,
		Status:    res.Status,
	}
	if result.Status == "" {
		result.Status = "queued"
	}
	if res.URI != "" {
		result.MessageURI = statusHost + res.URI
	}

	return result, nil
}

func (t *Twilio) buildForm(req domain.SendRequest) url.Values {
	form := url.Values{}
	if req.Body != "" {
		form.Set("Body", req.Body)
	}
	if t.messagingServiceSID != "" {
		form.Set("MessagingServiceSid", t.messagingServiceSID)
	} else {
		form.Set("From", t.from)
	}
	form.Set("To", req.To)
	for _, media := range req.MediaURLs {
		form.Add("MediaUrl", media)
	}
	return form
}

// attempt issues one wire call and classifies the outcome. It builds a fresh
// request each time so the form body reader is never reused across retries.
func (t *Twilio) attempt(ctx context.Context, endpoint string, form url.Values) (*messageResource, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, domain.NewSendError(domain.FailurePermanent, 0, "", fmt.Errorf("build request: %w", err))
	}
	httpReq.SetBasicAuth(t.accountSID, t.authToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.NewSendError(domain.FailureNetwork, 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domain.NewSendError(domain.FailureNetwork, 0, "", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := domain.FailurePermanent
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			kind = domain.FailureTransient
		}
		return nil, domain.NewSendError(kind, resp.StatusCode, string(body), nil)
	}

	var res messageResource
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, domain.NewSendError(domain.FailurePermanent, resp.StatusCode, string(body), fmt.Errorf("parse response: %w", err))
	}
	if res.SID == "" {
		return nil, domain.NewSendError(domain.FailurePermanent, resp.StatusCode, string(body), fmt.Errorf("provider response missing sid"))
	}

	return &res, nil
}
