package netease

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"photobackup/pkg/config"
	errs "photobackup/pkg/errors"
	"photobackup/pkg/logger"
	"photobackup/pkg/normalize"
	"photobackup/pkg/ratelimit"
	"photobackup/pkg/retry"
	"photobackup/pkg/transcode"
)

// Client fetches pages and photos from the photo site
type Client struct {
	pageClient  *http.Client
	photoClient *http.Client
	headers     map[string]string
	baseURL     string
	cdnHost     string
	transcoder  *transcode.Transcoder
	normalizer  *normalize.Normalizer
	limiter     ratelimit.Limiter
	retry       config.RetryConfig
	logger      logger.Logger
}

// NewClient creates a client from the source, rate limit, retry and
// download sections of cfg.
func NewClient(cfg *config.Config, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	tr, err := transcode.New(cfg.Source.Encoding)
	if err != nil {
		return nil, err
	}
	norm, err := normalize.New(normalize.Format(cfg.Source.FeedFormat))
	if err != nil {
		return nil, err
	}

	baseURL := cfg.Source.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cdnHost := cfg.Source.CDNHost
	if cdnHost == "" {
		cdnHost = DefaultCDNHost
	}

	photoTransport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Download.AllowInsecureTLS {
		photoTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via allow_insecure_tls
		log.Warn("TLS certificate verification is disabled for photo downloads")
	}

	userAgent := cfg.Source.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}

	return &Client{
		pageClient: &http.Client{
			Timeout: cfg.Source.RequestTimeout,
		},
		photoClient: &http.Client{
			Timeout:   cfg.Download.Timeout,
			Transport: photoTransport,
		},
		headers: map[string]string{
			"User-Agent":      userAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
			"Cache-Control":   "no-cache",
			"Pragma":          "no-cache",
		},
		baseURL:    baseURL,
		cdnHost:    cdnHost,
		transcoder: tr,
		normalizer: norm,
		limiter:    ratelimit.New(cfg.RateLimit.RequestsPerMinute),
		retry:      cfg.Retry,
		logger:     log,
	}, nil
}

// BaseURL returns the site the landing pages are fetched from
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(hc *http.Client, req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := hc.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "%s %s", req.Method, req.URL)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// checkResponseStatus maps a non-2xx response to a typed error
func checkResponseStatus(resp *http.Response) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}

	var t errs.ErrorType
	switch {
	case code == http.StatusNotFound:
		t = errs.ErrorTypeNotFound
	case code == http.StatusTooManyRequests:
		t = errs.ErrorTypeRateLimit
	case code >= 500:
		t = errs.ErrorTypeServerError
	default:
		t = errs.ErrorTypeUnknown
	}
	return &errs.Error{
		Type:    t,
		Message: fmt.Sprintf("unexpected status for %s", resp.Request.URL),
		Code:    code,
	}
}

// getPage fetches url through the rate limiter and retry policy and returns
// the body transcoded to UTF-8.
func (c *Client) getPage(ctx context.Context, url string) (string, error) {
	return retry.DoWithResult(func() (string, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", errs.Wrap(errs.ErrorTypeUnknown, err, "build request for %s", url)
		}

		resp, err := c.doRequest(c.pageClient, req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if err := checkResponseStatus(resp); err != nil {
			return "", err
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", errs.Wrap(errs.ErrorTypeNetwork, err, "read %s", url)
		}
		return c.transcoder.ToCanonical(raw)
	}, retry.FromConfig(ctx, c.retry, c.logger))
}

// FetchPhoto opens the body of the image at url. The caller must close it.
func (c *Client) FetchPhoto(ctx context.Context, url string) (io.ReadCloser, error) {
	return retry.DoWithResult(func() (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeInvalidReference, err, "build request for %s", url)
		}
		req.Header.Set("Referer", c.baseURL+"/")

		resp, err := c.doRequest(c.photoClient, req)
		if err != nil {
			return nil, err
		}
		if err := checkResponseStatus(resp); err != nil {
			resp.Body.Close()
			return nil, err
		}
		return resp.Body, nil
	}, retry.FromConfig(ctx, c.retry, c.logger))
}
