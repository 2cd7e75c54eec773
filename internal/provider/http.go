package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxErrorBody = 512

// CallError reports a non-2xx answer from a remote method.
type CallError struct {
	App        string
	Capability Capability
	StatusCode int
	Body       string
}

func (e *CallError) Error() string {
	msg := fmt.Sprintf("%s returned HTTP %d", MethodPath(e.App, e.Capability), e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

type HTTPOptions struct {
	APIKey    string
	APISecret string
	Timeout   time.Duration
	Client    *http.Client
}

// HTTPCaller invokes capabilities as POST /api/method/<app>.user_extension.<capability>
// and unwraps the {"message": ...} envelope.
type HTTPCaller struct {
	baseURL string
	key     string
	secret  string
	client  *http.Client
}

func NewHTTPCaller(baseURL string, opts HTTPOptions) *HTTPCaller {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPCaller{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     opts.APIKey,
		secret:  opts.APISecret,
		client:  client,
	}
}

func (c *HTTPCaller) Call(ctx context.Context, app string, capability Capability, args map[string]string) (json.RawMessage, error) {
	form := url.Values{}
	for k, v := range args {
		form.Set(k, v)
	}
	endpoint := c.baseURL + "/api/method/" + MethodPath(app, capability)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "token "+c.key+":"+c.secret)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &CallError{App: app, Capability: capability, StatusCode: resp.StatusCode, Body: snippet}
	}

	var envelope struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Message) == 0 {
		return nil, fmt.Errorf("%s: response has no message", MethodPath(app, capability))
	}
	return envelope.Message, nil
}
