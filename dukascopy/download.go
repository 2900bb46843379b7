package dukascopy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// download fetches and decompresses one hour file. A 404 is an hour the
// datafeed has no ticks for. Network errors, 429 and 5xx responses are
// retried up to retryCount times.
func (c *Client) download(ctx context.Context, symbol string, hour time.Time) ([]byte, error) {
	url := HourURL(c.baseURL, symbol, hour)

	op := func() ([]byte, error) {
		body, status, err := c.get(ctx, url)
		if err != nil {
			return nil, err
		}

		switch {
		case status == http.StatusNotFound:
			return nil, nil
		case status == http.StatusTooManyRequests || status >= 500:
			return nil, fmt.Errorf("datafeed http %d: %s", status, url)
		case status < 200 || status >= 300:
			return nil, backoff.Permanent(fmt.Errorf("datafeed http %d: %s", status, url))
		}

		raw, err := decompressBI5(body)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return raw, nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.pauseBetweenRetries), uint64(c.retryCount)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		c.log.WithFields(logrus.Fields{"url": url, "wait": wait}).WithError(err).Info("retrying hour")
	}

	raw, err := backoff.RetryNotifyWithData(op, policy, notify)
	if err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{"url": url, "bytes": len(raw)}).Debug("downloaded hour")
	return raw, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.WithField("body", strings.TrimSpace(string(b))).Debug("non-2xx response")
		return nil, resp.StatusCode, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
