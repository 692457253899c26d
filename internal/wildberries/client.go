// Package wildberries is the source adapter: it fetches product details, the
// category tree, subcategory filters and catalog listing pages from the
// Wildberries website and maps them onto the monitor's entity values.
package wildberries

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrTransient marks network failures and 5xx responses. The client retries
// these up to the configured count before surfacing them; callers treat them
// as a per-entity Failure, never as fatal for the run.
var ErrTransient = errors.New("transient source error")

// ErrSchema marks 4xx responses and malformed/unexpected response shapes.
// These are permanent for the call and are never retried.
var ErrSchema = errors.New("unexpected response from website")

// Config carries the retry knobs of the HTTP client.
type Config struct {
	Retries        int           // retry count for transient failures
	BaseRetryPause time.Duration // randomized pause drawn from [base/2, base]
	Timeout        time.Duration
}

// Client talks to the Wildberries website. The base URLs are variables so
// tests can point the client at a local server.
type Client struct {
	http *resty.Client
	log  *zap.SugaredLogger

	// Base URLs of the card, static basket and catalog services.
	CardBase    string
	StaticBase  string
	CatalogBase string
}

// NewClient builds a client with bounded retry: transient failures (network
// errors, 5xx) are retried up to cfg.Retries times with a randomized pause;
// 4xx responses are permanent and returned immediately.
func NewClient(cfg Config, log *zap.SugaredLogger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	rc := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.BaseRetryPause / 2).
		SetRetryMaxWaitTime(cfg.BaseRetryPause).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &Client{
		http:        rc,
		log:         log,
		CardBase:    "https://card.wb.ru",
		StaticBase:  "https://static-basket-01.wb.ru",
		CatalogBase: "https://catalog.wb.ru",
	}
}

// getJSON fetches url and decodes the body, classifying every failure as
// transient or schema per the error taxonomy.
func (c *Client) getJSON(url string, out any) error {
	resp, err := c.http.R().SetHeader("Accept", "application/json").Get(url)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "request failed"), ErrTransient)
	}
	code := resp.StatusCode()
	switch {
	case code == 200:
	case code >= 500:
		return errors.Mark(errors.Newf("status %d from %s", code, url), ErrTransient)
	default:
		return errors.Mark(errors.Newf("status %d from %s", code, url), ErrSchema)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errors.Mark(errors.Wrap(err, "malformed json body"), ErrSchema)
	}
	return nil
}
