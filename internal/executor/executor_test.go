package executor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/studiowebux/orderstress/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_PostsBodyAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `[{"id":1,"quantity":1}]`, string(body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":true,"orderId":1,"total":29.99}`))
	}))
	defer server.Close()

	client, err := BuildHTTPClient(ClientOptions{Timeout: time.Second})
	require.NoError(t, err)

	result, err := Execute(context.Background(), client, &types.HttpRequest{
		Method:  http.MethodPost,
		URL:     server.URL,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    `[{"id":1,"quantity":1}]`,
	})
	require.NoError(t, err)

	assert.Equal(t, 200, result.Status)
	assert.Equal(t, `{"success":true,"orderId":1,"total":29.99}`, result.Body)
	assert.Equal(t, "application/json", result.Headers["Content-Type"])
	assert.Equal(t, 23, result.RequestSize)
	assert.Equal(t, len(result.Body), result.ResponseSize)
	assert.Empty(t, result.Error)
}

func TestExecute_HTTPErrorIsNotGoError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":"Invalid JSON"}`))
	}))
	defer server.Close()

	client, err := BuildHTTPClient(ClientOptions{})
	require.NoError(t, err)

	result, err := Execute(context.Background(), client, &types.HttpRequest{Method: "POST", URL: server.URL, Body: "[]"})
	require.NoError(t, err)
	assert.Equal(t, 400, result.Status)
	assert.Contains(t, result.Body, "Invalid JSON")
	assert.Empty(t, result.Error)
}

func TestExecute_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := BuildHTTPClient(ClientOptions{Timeout: time.Second})
	require.NoError(t, err)

	result, err := Execute(context.Background(), client, &types.HttpRequest{Method: "POST", URL: url, Body: "[]"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestExecute_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client, err := BuildHTTPClient(ClientOptions{Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	result, err := Execute(context.Background(), client, &types.HttpRequest{Method: "GET", URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestExecute_MalformedURL(t *testing.T) {
	client, err := BuildHTTPClient(ClientOptions{})
	require.NoError(t, err)

	_, err = Execute(context.Background(), client, &types.HttpRequest{Method: "GET", URL: "http://[::1"})
	assert.Error(t, err)
}

func TestBuildHTTPClient_CookieJarKeepsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
			return
		}
		c, err := r.Cookie("sid")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(c.Value))
	}))
	defer server.Close()

	client, err := BuildHTTPClient(ClientOptions{CookieJar: true})
	require.NoError(t, err)
	require.NotNil(t, client.Jar)

	_, err = Execute(context.Background(), client, &types.HttpRequest{Method: "POST", URL: server.URL + "/login"})
	require.NoError(t, err)

	result, err := Execute(context.Background(), client, &types.HttpRequest{Method: "GET", URL: server.URL + "/me"})
	require.NoError(t, err)
	assert.Equal(t, 200, result.Status)
	assert.Equal(t, "abc", result.Body)

	plain, err := BuildHTTPClient(ClientOptions{})
	require.NoError(t, err)
	assert.Nil(t, plain.Jar)
}

func TestBuildHTTPClient_BadCAFile(t *testing.T) {
	_, err := BuildHTTPClient(ClientOptions{TLS: &TLSConfig{CAFile: "/does/not/exist.pem"}})
	assert.Error(t, err)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "250ms", FormatDuration(250))
	assert.Equal(t, "1.50s", FormatDuration(1500))

	assert.True(t, IsSuccessStatus(204))
	assert.False(t, IsSuccessStatus(301))
}
