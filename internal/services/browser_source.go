package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	. "snow-extractor/internal/common"
	"snow-extractor/internal/interfaces"
	"snow-extractor/internal/models"
)

type browserPageSource struct {
	baseURL string
	config  *BrowserConfig
	timeout time.Duration
	logger  arbor.ILogger
}

// NewBrowserPageSource reads the current page of an already authenticated
// browser over its remote debugging port. The browser must be started with
// --remote-debugging-port.
func NewBrowserPageSource(config *Config, logger arbor.ILogger) interfaces.PageSource {
	return &browserPageSource{
		baseURL: config.Instance.BaseURL,
		config:  &config.Browser,
		timeout: time.Duration(config.Browser.TimeoutSeconds) * time.Second,
		logger:  logger,
	}
}

// FetchPage navigates to the configured page URL, or attaches to the first
// open tab under the instance base URL, and returns its rendered HTML with
// the session token and cookies of that tab.
func (s *browserPageSource) FetchPage(ctx context.Context) (*models.Page, error) {
	debugURL := fmt.Sprintf("http://localhost:%d", s.config.RemoteDebugPort)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, debugURL)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	tabCtx := browserCtx
	if s.config.PageURL == "" {
		targetCtx, targetCancel, err := s.attachToInstanceTab(browserCtx)
		if err != nil {
			return nil, err
		}
		defer targetCancel()
		tabCtx = targetCtx
	}

	var (
		content string
		token   string
		url     string
		cookies []*network.Cookie
	)

	actions := []chromedp.Action{}
	if s.config.PageURL != "" {
		actions = append(actions, chromedp.Navigate(s.config.PageURL))
	}
	if s.config.WaitMillis > 0 {
		actions = append(actions, chromedp.Sleep(time.Duration(s.config.WaitMillis)*time.Millisecond))
	}
	actions = append(actions,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&url),
		chromedp.OuterHTML("html", &content, chromedp.ByQuery),
		chromedp.Evaluate(`window.g_ck || ''`, &token),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	)

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return nil, WrapError(err, ErrorTypeExtraction, "browser_read_failed", "failed to read page from browser")
	}

	if token == "" {
		token = FindSessionToken(content)
	}

	s.logger.Info().Str("url", url).Int("bytes", len(content)).Int("cookies", len(cookies)).Msg("Read page from browser")

	return &models.Page{
		URL:          url,
		HTML:         content,
		SessionToken: token,
		Cookies:      toHTTPCookies(cookies),
	}, nil
}

// attachToInstanceTab finds an open page target under the instance base URL
func (s *browserPageSource) attachToInstanceTab(browserCtx context.Context) (context.Context, context.CancelFunc, error) {
	targets, err := chromedp.Targets(browserCtx)
	if err != nil {
		return nil, nil, WrapError(err, ErrorTypeExtraction, "browser_targets_failed", "failed to list browser tabs")
	}

	for _, t := range targets {
		if t.Type != "page" || t.URL == "about:blank" {
			continue
		}
		if s.baseURL == "" || strings.HasPrefix(t.URL, s.baseURL) {
			s.logger.Debug().Str("url", t.URL).Msg("Attaching to browser tab")
			ctx, cancel := chromedp.NewContext(browserCtx, chromedp.WithTargetID(t.TargetID))
			return ctx, cancel, nil
		}
	}

	return nil, nil, NewExtractionError("no_instance_tab", "no open browser tab matches the instance base URL").
		WithContext("base_url", s.baseURL)
}

func toHTTPCookies(cookies []*network.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}
	return out
}
