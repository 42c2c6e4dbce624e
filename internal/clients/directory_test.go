package clients

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDirectoryClient_StudentExists(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantExists bool
		wantErr    bool
	}{
		{name: "found", status: http.StatusOK, body: `{"code":200,"message":"ok","data":{"studentId":"S1"}}`, wantExists: true},
		{name: "http not found", status: http.StatusNotFound, body: `{"code":404,"message":"missing"}`},
		{name: "envelope not found", status: http.StatusOK, body: `{"code":404,"message":"missing","data":null}`},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, wantErr: true},
		{name: "bad gateway", status: http.StatusBadGateway, wantErr: true},
		{name: "malformed body", status: http.StatusOK, body: `{not json`, wantErr: true},
		{name: "unexpected envelope code", status: http.StatusOK, body: `{"code":500,"message":"db down"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/students", r.URL.Path)
				assert.Equal(t, "S1", r.URL.Query().Get("studentid"))
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			client := NewDirectoryClient(server.URL+"/", server.Client(), discardLogger())
			exists, err := client.StudentExists(context.Background(), "S1")

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrDirectoryUnavailable)
				assert.False(t, exists)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExists, exists)
		})
	}
}

func TestDirectoryClient_StudentExists_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	httpClient := NewHTTPClient(context.Background(), Options{Timeout: 50 * time.Millisecond})
	client := NewDirectoryClient(server.URL, httpClient, discardLogger())

	_, err := client.StudentExists(context.Background(), "S1")

	assert.ErrorIs(t, err, ErrDirectoryUnavailable)
}

func TestDirectoryClient_StudentExists_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewDirectoryClient(url, http.DefaultClient, discardLogger())
	_, err := client.StudentExists(context.Background(), "S1")

	assert.ErrorIs(t, err, ErrDirectoryUnavailable)
}

func TestDirectoryClient_StudentExists_OversizedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":200,"message":"`+strings.Repeat("a", 2*maxResponseBytes)+`"}`)
	}))
	defer server.Close()

	client := NewDirectoryClient(server.URL, server.Client(), discardLogger())
	exists, err := client.StudentExists(context.Background(), "S1")

	assert.ErrorIs(t, err, ErrDirectoryUnavailable)
	assert.False(t, exists)
}

func TestDirectoryClient_StudentExists_ReusesConnectionAfterNotFound(t *testing.T) {
	server, conns := newConnCountingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":404,"message":"student not found"}`)
	}))

	client := NewDirectoryClient(server.URL, server.Client(), discardLogger())
	for i := 0; i < 2; i++ {
		exists, err := client.StudentExists(context.Background(), "S404")
		require.NoError(t, err)
		assert.False(t, exists)
	}

	assert.Equal(t, int32(1), conns.Load())
}
