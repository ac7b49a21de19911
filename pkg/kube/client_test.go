package kube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dfh-cloud/dfh/pkg/except"
	"github.com/stretchr/testify/suite"
)

type ClientTestSuite struct {
	suite.Suite
}

func (c *ClientTestSuite) TestGetDecodesBody() {
	// -- Given
	//
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Equal(http.MethodGet, r.Method)
		c.Equal("/api/v1/pods", r.URL.Path)
		_, _ = w.Write([]byte(`{"kind":"PodList","items":[]}`))
	}))
	defer server.Close()
	client := NewClientForHost(server.URL, server.Client())

	// -- When
	//
	resp, err := client.Get(context.Background(), "/api/v1/pods")

	// -- Then
	//
	c.NoError(err)
	c.Equal("PodList", resp["kind"])
}

func (c *ClientTestSuite) TestStatusCodesMapToReasons() {
	// -- Given
	//
	cases := map[int]except.ErrorReason{
		http.StatusNotFound:            except.ErrNotFound,
		http.StatusConflict:            except.ErrAlreadyExists,
		http.StatusGone:                except.ErrGone,
		http.StatusBadRequest:          except.ErrInvalid,
		http.StatusUnprocessableEntity: except.ErrInvalid,
		http.StatusInternalServerError: except.ErrUnavailable,
	}

	for code, reason := range cases {
		code := code
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{}`))
		}))
		client := NewClientForHost(server.URL, server.Client())

		// -- When
		//
		_, err := client.Get(context.Background(), "/api/v1/pods")

		// -- Then
		//
		c.Error(err)
		c.Equal(reason, except.Reason(err))
		server.Close()
	}
}

func (c *ClientTestSuite) TestStatusCodesAreNotRetried() {
	// -- Given
	//
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()
	client := NewClientForHost(server.URL, server.Client())

	// -- When
	//
	_, err := client.Get(context.Background(), "/api/v1/pods")

	// -- Then
	//
	c.Error(err)
	c.Equal(int32(1), atomic.LoadInt32(&calls))
}

func (c *ClientTestSuite) TestCorruptPayloadIsRetried() {
	// -- Given
	//
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = w.Write([]byte(`{"truncated`))
			return
		}
		_, _ = w.Write([]byte(`{"kind":"PodList"}`))
	}))
	defer server.Close()
	client := NewClientForHost(server.URL, server.Client())

	// -- When
	//
	resp, err := client.Get(context.Background(), "/api/v1/pods")

	// -- Then
	//
	c.NoError(err)
	c.Equal("PodList", resp["kind"])
	c.Equal(int32(2), atomic.LoadInt32(&calls))
}

func (c *ClientTestSuite) TestPostRequiresCreated() {
	// -- Given
	//
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Equal("application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"kind":"Deployment"}`))
	}))
	defer server.Close()
	client := NewClientForHost(server.URL, server.Client())

	// -- When
	//
	resp, err := client.Post(context.Background(), "/apis/apps/v1/namespaces/demo/deployments", map[string]interface{}{})

	// -- Then
	//
	c.NoError(err)
	c.Equal("Deployment", resp["kind"])
}

func (c *ClientTestSuite) TestPatchSendsJsonPatchContentType() {
	// -- Given
	//
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Equal(http.MethodPatch, r.Method)
		c.Equal("application/json-patch+json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()
	client := NewClientForHost(server.URL, server.Client())

	// -- When
	//
	_, err := client.Patch(context.Background(), "/api/v1/namespaces/demo/services/nginx", []map[string]interface{}{})

	// -- Then
	//
	c.NoError(err)
}

func (c *ClientTestSuite) TestDeleteAcceptsAccepted() {
	// -- Given
	//
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()
	client := NewClientForHost(server.URL, server.Client())

	// -- When
	//
	_, err := client.Delete(context.Background(), "/api/v1/namespaces/demo/services/nginx")

	// -- Then
	//
	c.NoError(err)
}

func (c *ClientTestSuite) TestWatchPath() {
	// -- Then
	//
	c.Equal("/api/v1/pods?watch=true&timeoutSeconds=120&resourceVersion=42",
		WatchPath("/api/v1/pods", 120, 42))
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}
