package zpw

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Transport performs the HTTP exchange for a remote procedure.
type Transport interface {
	Post(ctx context.Context, endpoint string, form url.Values) (*http.Response, error)
}

const (
	defaultOrigin    = "https://chat.zalo.me"
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultLanguage  = "vi-VN,vi;q=0.9,en-US;q=0.8,en;q=0.7"
)

// TransportOptions configures HTTPTransport. Zero values fall back to defaults.
type TransportOptions struct {
	UserAgent string
	Language  string
	Cookie    string
	Timeout   time.Duration
	RateLimit float64 // requests per second; <= 0 disables limiting
	Burst     int
}

// HTTPTransport posts form bodies with browser-like headers. It does not retry.
type HTTPTransport struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	language  string
	cookie    string
	logger    *zap.Logger
}

// NewHTTPTransport creates a transport. A nil logger is replaced by a no-op logger.
func NewHTTPTransport(opts TransportOptions, logger *zap.Logger) *HTTPTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	t := &HTTPTransport{
		client:    &http.Client{Timeout: timeout},
		userAgent: opts.UserAgent,
		language:  opts.Language,
		cookie:    opts.Cookie,
		logger:    logger,
	}
	if t.userAgent == "" {
		t.userAgent = defaultUserAgent
	}
	if t.language == "" {
		t.language = defaultLanguage
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return t
}

func (t *HTTPTransport) Post(ctx context.Context, endpoint string, form url.Values) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", t.language)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", defaultOrigin)
	req.Header.Set("Referer", defaultOrigin+"/")
	req.Header.Set("User-Agent", t.userAgent)
	if t.cookie != "" {
		req.Header.Set("Cookie", t.cookie)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Debug("request failed", zap.String("endpoint", req.URL.Path), zap.Error(err))
		return nil, err
	}
	t.logger.Debug("request completed",
		zap.String("endpoint", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)
	return resp, nil
}
