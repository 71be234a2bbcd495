package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"

	. "snow-extractor/internal/common"
	"snow-extractor/internal/models"
)

// legacyDefaultLimit is the record count asked of the legacy shape when the
// caller sets no limit
const legacyDefaultLimit = 100

// ServiceNowClient queries the host REST API, falling back across endpoint
// shapes for the same logical table.
type ServiceNowClient struct {
	client  *resty.Client
	config  *APIConfig
	baseURL string
	host    string
	timeout time.Duration
	backoff time.Duration
	logger  arbor.ILogger

	mu      sync.RWMutex
	token   string
	cookies []*http.Cookie
}

// NewServiceNowClient creates a client for the configured instance. Session
// credentials from configuration are used until UseSession replaces them.
func NewServiceNowClient(config *Config, logger arbor.ILogger) *ServiceNowClient {
	client := resty.New().
		SetBaseURL(config.Instance.BaseURL).
		SetHeader("Accept", "application/json").
		SetHeader("X-Requested-With", "XMLHttpRequest")

	if config.Instance.UserAgent != "" {
		client.SetHeader("User-Agent", config.Instance.UserAgent)
	}

	var cookies []*http.Cookie
	if config.Instance.Cookie != "" {
		parsed, err := http.ParseCookie(config.Instance.Cookie)
		if err != nil {
			logger.Warn().Err(err).Msg("Ignoring malformed configured cookie header")
		} else {
			cookies = parsed
		}
	}

	var host string
	if parsed, err := url.Parse(config.Instance.BaseURL); err == nil {
		host = parsed.Hostname()
	}

	return &ServiceNowClient{
		client:  client,
		config:  &config.API,
		baseURL: config.Instance.BaseURL,
		host:    host,
		timeout: time.Duration(config.API.TimeoutSeconds) * time.Second,
		backoff: time.Duration(config.API.BackoffMillis) * time.Millisecond,
		logger:  logger,
		token:   config.Instance.SessionToken,
		cookies: cookies,
	}
}

// UseSession adopts session credentials read from the instance page. An empty
// token keeps the current one. Cookies are merged by name over the current
// ones; cookies scoped to another host are ignored.
func (c *ServiceNowClient) UseSession(token string, cookies []*http.Cookie) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token != "" {
		c.token = token
	}

	for _, cookie := range cookies {
		if !c.instanceCookie(cookie) {
			c.logger.Debug().Str("cookie", cookie.Name).Str("domain", cookie.Domain).Msg("Ignoring cookie for another host")
			continue
		}
		c.cookies = mergeCookie(c.cookies, cookie)
	}
}

// instanceCookie reports whether a cookie may be sent to the instance. Cookies
// without a domain were read from the instance page itself.
func (c *ServiceNowClient) instanceCookie(cookie *http.Cookie) bool {
	domain := strings.TrimPrefix(strings.ToLower(cookie.Domain), ".")
	if domain == "" {
		return true
	}
	host := strings.ToLower(c.host)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func mergeCookie(cookies []*http.Cookie, cookie *http.Cookie) []*http.Cookie {
	merged := make([]*http.Cookie, 0, len(cookies)+1)
	for _, existing := range cookies {
		if existing.Name != cookie.Name {
			merged = append(merged, existing)
		}
	}
	return append(merged, cookie)
}

// Query runs one logical table query, trying each configured endpoint shape
// in order with a flat backoff between failures. Exhausting every shape
// returns an API error wrapping the last failure.
func (c *ServiceNowClient) Query(ctx context.Context, table, filter string, fields []string, limit int) ([]models.RawRecord, error) {
	if c.baseURL == "" {
		return nil, NewConfigurationError("missing_base_url", "instance base_url is required for API queries")
	}

	attempts := make([]attempt[[]models.RawRecord], 0, len(c.config.Shapes))
	for _, shape := range c.config.Shapes {
		attempts = append(attempts, attempt[[]models.RawRecord]{
			name: shape,
			run: func(ctx context.Context) ([]models.RawRecord, error) {
				return c.fetch(ctx, shape, table, filter, fields, limit)
			},
		})
	}

	records, tried, err := firstSuccess(ctx, c.backoff, attempts, func(shape string, err error) {
		c.logger.Warn().Str("table", table).Str("shape", shape).Err(err).Msg("API attempt failed")
	})
	if err != nil {
		return nil, NewAPIError(table, tried, err)
	}

	c.logger.Info().Str("table", table).Int("records", len(records)).Int("attempts", tried).Msg("API query succeeded")
	return records, nil
}

// fetch performs a single GET against one endpoint shape
func (c *ServiceNowClient) fetch(ctx context.Context, shape, table, filter string, fields []string, limit int) ([]models.RawRecord, error) {
	path, params := c.buildRequest(shape, table, filter, fields, limit)

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := c.client.R().
		SetContext(reqCtx).
		SetQueryParams(params)

	c.mu.RLock()
	if c.token != "" {
		req.SetHeader("X-UserToken", c.token)
	}
	if len(c.cookies) > 0 {
		req.SetCookies(c.cookies)
	}
	c.mu.RUnlock()

	c.logger.Debug().Str("shape", shape).Str("path", path).Msg("Issuing API request")

	resp, err := req.Get(path)
	if err != nil {
		if isTimeout(reqCtx, ctx, err) {
			return nil, NewTimeoutError(path, c.timeout).WithCause(err)
		}
		return nil, WrapError(err, ErrorTypeNetwork, "request_failed", fmt.Sprintf("request to %s failed", path))
	}

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, NewHTTPError(resp.StatusCode(), resp.String()).WithContext("endpoint", path)
	}

	return parseEnvelope(resp.Body())
}

// buildRequest returns the path and query parameters of an endpoint shape
func (c *ServiceNowClient) buildRequest(shape, table, filter string, fields []string, limit int) (string, map[string]string) {
	params := make(map[string]string)
	if len(fields) > 0 {
		params["sysparm_fields"] = strings.Join(withSysID(fields), ",")
	}
	if filter != "" {
		params["sysparm_query"] = filter
	}

	if shape == ShapeLegacy {
		if limit <= 0 {
			limit = legacyDefaultLimit
		}
		params["JSONv2"] = ""
		params["sysparm_action"] = "getRecords"
		params["sysparm_max_records"] = strconv.Itoa(c.clampLimit(limit))
		return "/" + table + ".do", params
	}

	params["sysparm_limit"] = strconv.Itoa(c.clampLimit(limit))
	if c.config.DisplayValue != "" {
		params["sysparm_display_value"] = c.config.DisplayValue
	}
	if c.config.ExcludeReferenceLink {
		params["sysparm_exclude_reference_link"] = "true"
	}

	if shape == ShapeVersioned {
		return "/api/now/v2/table/" + table, params
	}
	return "/api/now/table/" + table, params
}

func (c *ServiceNowClient) clampLimit(limit int) int {
	if limit <= 0 || limit > c.config.MaxLimit {
		return c.config.MaxLimit
	}
	return limit
}

// withSysID appends sys_id to the field list when absent so API records
// always carry their dedup key
func withSysID(fields []string) []string {
	for _, f := range fields {
		if f == models.SysIDField {
			return fields
		}
	}
	out := make([]string, 0, len(fields)+1)
	out = append(out, fields...)
	return append(out, models.SysIDField)
}

// isTimeout distinguishes a per-request deadline from caller cancellation
func isTimeout(reqCtx, parent context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// envelope covers both the REST ({result}) and legacy ({records}) responses
type envelope struct {
	Result  json.RawMessage `json:"result"`
	Records json.RawMessage `json:"records"`
}

// parseEnvelope normalizes a response body into raw records. A body without
// a recognized record array is a structural error.
func parseEnvelope(body []byte) ([]models.RawRecord, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, NewStructuralError("response is not a JSON object").
			WithDetails(TruncateText(string(body), 200)).
			WithCause(err)
	}

	for _, raw := range []json.RawMessage{env.Result, env.Records} {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '[' {
			continue
		}
		var records []models.RawRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, NewStructuralError("record array could not be decoded").WithCause(err)
		}
		return records, nil
	}

	return nil, NewStructuralError("response has no result or records array")
}
