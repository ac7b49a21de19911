package kube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dfh-cloud/dfh/pkg/except"
	"github.com/dfh-cloud/dfh/pkg/kube/kconfig"
	"github.com/dfh-cloud/dfh/pkg/model"
	log "github.com/sirupsen/logrus"
	"k8s.io/client-go/rest"
)

const (
	// Bounds for the retry loop around every single API call.
	retryMaxAttempts    = 8
	retryMaxElapsedTime = 300 * time.Second
	retryMaxInterval    = 20 * time.Second
)

// Client is the low level JSON transport to the K8s API server. All verbs
// retry transient failures with exponential backoff and jitter before they
// give up with a typed error. Protocol errors (non-2xx) are never retried.
type Client interface {
	Get(ctx context.Context, path string) (model.Manifest, error)
	Post(ctx context.Context, path string, payload interface{}) (model.Manifest, error)
	Patch(ctx context.Context, path string, payload interface{}) (model.Manifest, error)
	Delete(ctx context.Context, path string) (model.Manifest, error)

	// Stream opens a long lived connection without any retry handling. The
	// caller owns reconnects.
	Stream(ctx context.Context, path string) (io.ReadCloser, error)

	Host() string
}

type ClientSpec struct {
	Config kconfig.ConfigSpec
}

func NewClient(spec ClientSpec) (Client, error) {
	conf, err := kconfig.NewConfigClient(spec.Config)
	if err != nil {
		return nil, err
	}

	restConf := conf.Rest()
	httpClient, err := rest.HTTPClientFor(restConf)
	if err != nil {
		return nil, err
	}

	return &client{
		HttpClient: httpClient,
		BaseUrl:    restConf.Host,
	}, nil
}

// NewClientForHost wires a Client against an already authenticated HTTP
// client. Used by tests to point the transport at a fake API server.
func NewClientForHost(host string, httpClient *http.Client) Client {
	return &client{
		HttpClient: httpClient,
		BaseUrl:    host,
	}
}

type client struct {
	HttpClient *http.Client
	BaseUrl    string
}

func (c *client) Host() string {
	return c.BaseUrl
}

func (c *client) Get(ctx context.Context, path string) (model.Manifest, error) {
	resp, code, err := c.request(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return resp, err
	}
	if code != http.StatusOK {
		return resp, statusError(code, http.MethodGet, path)
	}
	return resp, nil
}

func (c *client) Post(ctx context.Context, path string, payload interface{}) (model.Manifest, error) {
	resp, code, err := c.request(ctx, http.MethodPost, path, payload, "application/json")
	if err != nil {
		return resp, err
	}
	if code != http.StatusCreated {
		return resp, statusError(code, http.MethodPost, path)
	}
	return resp, nil
}

func (c *client) Patch(ctx context.Context, path string, payload interface{}) (model.Manifest, error) {
	resp, code, err := c.request(ctx, http.MethodPatch, path, payload, "application/json-patch+json")
	if err != nil {
		return resp, err
	}
	if code != http.StatusOK {
		return resp, statusError(code, http.MethodPatch, path)
	}
	return resp, nil
}

func (c *client) Delete(ctx context.Context, path string) (model.Manifest, error) {
	resp, code, err := c.request(ctx, http.MethodDelete, path, nil, "")
	if err != nil {
		return resp, err
	}
	if code != http.StatusOK && code != http.StatusAccepted {
		return resp, statusError(code, http.MethodDelete, path)
	}
	return resp, nil
}

func (c *client) Stream(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseUrl+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, except.NewError("stream %s: %v", except.ErrUnavailable, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, statusError(resp.StatusCode, http.MethodGet, path)
	}
	return resp.Body, nil
}

// request performs one verb with the retry policy applied. It returns the
// decoded JSON body and the final HTTP status code. Transport failures and
// corrupt JSON payloads are retried; any received status code is final.
func (c *client) request(ctx context.Context, method, path string, payload interface{}, contentType string) (model.Manifest, int, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return model.Manifest{}, -1, except.NewError("encode %s payload: %v", except.ErrInvalid, path, err)
		}
	}

	var decoded model.Manifest
	var code int
	attempt := 0

	operation := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, method, c.BaseUrl+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.HttpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		code = resp.StatusCode
		decoded = model.Manifest{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &decoded); err != nil {
				return fmt.Errorf("corrupt JSON payload: %w", err)
			}
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		log.WithField("attempt", attempt).
			WithField("method", method).
			WithField("path", path).
			WithError(err).
			Warn("Back off")
	}

	policy := backoff.WithContext(newRetryPolicy(), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		log.WithField("method", method).
			WithField("path", path).
			WithError(err).
			Error("Giving up")
		return model.Manifest{}, -1, except.NewError("%s %s: %v", except.ErrUnavailable, method, path, err)
	}

	return decoded, code, nil
}

func newRetryPolicy() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = retryMaxInterval
	bo.MaxElapsedTime = retryMaxElapsedTime
	return backoff.WithMaxRetries(bo, retryMaxAttempts)
}

func statusError(code int, method, path string) error {
	reason := except.ErrUnavailable
	switch code {
	case http.StatusNotFound:
		reason = except.ErrNotFound
	case http.StatusConflict:
		reason = except.ErrAlreadyExists
	case http.StatusGone:
		reason = except.ErrGone
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		reason = except.ErrInvalid
	}
	return except.NewError("%d - %s %s", reason, code, method, path)
}

// WatchPath appends the watch query parameters to a resource list path.
func WatchPath(listPath string, timeoutSeconds int, resourceVersion int64) string {
	return fmt.Sprintf("%s?watch=true&timeoutSeconds=%d&resourceVersion=%d",
		listPath, timeoutSeconds, resourceVersion)
}
