// Package clients talks to the student directory and course catalog services.
package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const DefaultTimeout = 5 * time.Second

// maxResponseBytes caps how much of a collaborator response is read.
const maxResponseBytes = 1 << 20

// Options configures the HTTP client shared by the collaborator clients.
// The OAuth2 fields are optional; when ClientID and TokenURL are both set,
// every request carries a client-credentials bearer token.
type Options struct {
	Timeout      time.Duration
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

func NewHTTPClient(ctx context.Context, opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	base := &http.Client{Timeout: timeout}
	if opts.ClientID == "" || opts.TokenURL == "" {
		return base
	}

	cc := clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
		Scopes:       opts.Scopes,
	}
	client := cc.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
	client.Timeout = timeout
	return client
}

// envelope is the {code, message, data} wrapper both collaborators reply with.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) hasData() bool {
	return len(e.Data) > 0 && string(e.Data) != "null"
}

// drainAndClose reads what is left of body, up to maxResponseBytes, so the
// connection can go back to the pool.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxResponseBytes))
	_ = body.Close()
}

func decodeEnvelope(body io.Reader) (envelope, error) {
	var env envelope
	err := json.NewDecoder(io.LimitReader(body, maxResponseBytes)).Decode(&env)
	return env, err
}
