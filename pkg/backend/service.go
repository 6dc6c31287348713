package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/go-resty/resty/v2"

	"github.com/helmcode/cropdoc/pkg/model"
)

// Variant represents the endpoint pairing a deployment exposes
type Variant string

const (
	// VariantA: /give-image (multipart) and /confirm-disease
	VariantA Variant = "A"
	// VariantB: /analyze-disease (base64 JSON), /get-disease-info and the
	// crop/advisor listings
	VariantB Variant = "B"
)

const (
	PathHealth          = "/health"
	PathGiveImage       = "/give-image"
	PathConfirmDisease  = "/confirm-disease"
	PathAnalyzeDisease  = "/analyze-disease"
	PathGetDiseaseInfo  = "/get-disease-info"
	PathAvailableCrops  = "/available-crops"
	PathAvailableAdvice = "/available-smes"
)

// HeaderSessionID identifies the installation making the call
const HeaderSessionID = "X-Session-ID"

// ErrUnsupported is returned for endpoints the active variant does not have.
var ErrUnsupported = errors.New("endpoint not supported by this backend variant")

// Service is the remote diagnosis service. SubmitImage and ConfirmDisease
// return a Response for any HTTP status; only transport failures are errors.
type Service interface {
	Health(ctx context.Context) (string, error)
	SubmitImage(ctx context.Context, req *model.AnalysisRequest) (*Response, error)
	ConfirmDisease(ctx context.Context, req *model.AnalysisRequest) (*Response, error)
	Crops(ctx context.Context) ([]string, error)
	Advisors(ctx context.Context) ([]string, error)
	Variant() Variant
}

// Response is the raw HTTP outcome of a diagnosis call
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Config selects the deployment to talk to
type Config struct {
	BaseURL string
	Variant Variant
	Timeout time.Duration
	// SessionID is sent on every request when set
	SessionID string
}

// ParseVariant accepts "a"/"b" in any case
func ParseVariant(s string) (Variant, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A", "":
		return VariantA, nil
	case "B":
		return VariantB, nil
	default:
		return "", fmt.Errorf("unsupported backend variant: %s (supported: A, B)", s)
	}
}

// New creates the Service for cfg.Variant
func New(cfg Config) (Service, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	base := newBaseClient(cfg)

	switch cfg.Variant {
	case VariantA, "":
		return &variantA{baseClient: base}, nil
	case VariantB:
		return &variantB{baseClient: base}, nil
	default:
		return nil, fmt.Errorf("unsupported backend variant: %s", cfg.Variant)
	}
}

// baseClient carries what both variants share
type baseClient struct {
	http    *resty.Client
	baseURL string
	logger  log.Interface
}

func newBaseClient(cfg Config) baseClient {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if !strings.HasPrefix(baseURL, "http") {
		baseURL = "http://" + baseURL
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.SessionID != "" {
		client.SetHeader(HeaderSessionID, cfg.SessionID)
	}

	return baseClient{
		http:    client,
		baseURL: baseURL,
		logger:  log.WithFields(log.Fields{"backend": baseURL, "variant": string(cfg.Variant)}),
	}
}

func (b *baseClient) Health(ctx context.Context) (string, error) {
	resp, err := b.http.R().SetContext(ctx).Get(PathHealth)
	if err != nil {
		return "", fmt.Errorf("health check: %w", err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("health check returned status %d", resp.StatusCode())
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Body(), &health); err != nil {
		return "", fmt.Errorf("decode health response: %w", err)
	}
	return health.Status, nil
}

func (b *baseClient) postJSON(ctx context.Context, path string, payload any) (*Response, error) {
	b.logger.WithField("path", path).Debug("sending json request")

	resp, err := b.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(path)
	if err != nil {
		b.logger.WithError(err).WithField("path", path).Warn("request failed")
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	return toResponse(resp), nil
}

func (b *baseClient) getNames(ctx context.Context, path string, keys ...string) ([]string, error) {
	resp, err := b.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("get %s: status %d", path, resp.StatusCode())
	}
	return decodeNames(resp.Body(), keys...)
}

func toResponse(resp *resty.Response) *Response {
	return &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		Header:     resp.Header(),
	}
}

// decodeNames accepts either a bare list of names or an object holding the
// list under one of keys.
func decodeNames(body []byte, keys ...string) ([]string, error) {
	var names []string
	if err := json.Unmarshal(body, &names); err == nil {
		return names, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode name list: %w", err)
	}
	for _, k := range keys {
		raw, ok := wrapped[k]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &names); err != nil {
			return nil, fmt.Errorf("decode %s: %w", k, err)
		}
		return names, nil
	}
	return nil, fmt.Errorf("no name list in response (looked for %s)", strings.Join(keys, ", "))
}
