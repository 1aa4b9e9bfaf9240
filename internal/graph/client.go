package graph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const userAgent = "flashsync/0.1"

// TokenSource provides OAuth2 bearer tokens. Defined at the consumer per
// Go convention "accept interfaces, return structs"; TokenManager is the
// real implementation.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is an HTTP client for the Microsoft Graph API. It handles request
// construction, authentication, and error classification. There is no
// automatic retry: a failed cycle is recovered by the next scheduled run,
// and the single token-refresh attempt inside TokenManager is the only
// exception to that rule.
type Client struct {
	baseURL string

	// httpClient serves metadata calls; contentClient serves payload
	// downloads with a longer timeout; noRedirect is httpClient with
	// redirect-following disabled, for /content Location probes.
	httpClient    *http.Client
	contentClient *http.Client
	noRedirect    *http.Client

	token  TokenSource
	logger *slog.Logger
}

// NewClient creates a Graph API client. baseURL is typically
// "https://graph.microsoft.com/v1.0". Nil clients fall back to
// http.DefaultClient.
func NewClient(baseURL string, httpClient, contentClient *http.Client, token TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if contentClient == nil {
		contentClient = httpClient
	}

	noRedirect := &http.Client{
		Transport: httpClient.Transport,
		Timeout:   httpClient.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Client{
		baseURL:       baseURL,
		httpClient:    httpClient,
		contentClient: contentClient,
		noRedirect:    noRedirect,
		token:         token,
		logger:        logger,
	}
}

// Do executes a single HTTP request against the Graph API. The path is
// appended to the client's base URL. The caller is responsible for
// closing the response body on success. Non-2xx responses become typed
// errors: 401 an *AuthError so the orchestrator can abort the run,
// everything else an *APIError carrying the classified sentinel.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	return c.do(ctx, c.httpClient, method, c.baseURL+path, body, true)
}

// do executes one request on the given client. withAuth controls the
// Authorization header; pre-authenticated download URLs must not carry it.
func (c *Client) do(
	ctx context.Context, client *http.Client, method, url string, body io.Reader, withAuth bool,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("graph: creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	if withAuth {
		tok, err := c.token.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("graph: obtaining token: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+tok)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("graph: request canceled: %w", ctx.Err())
		}

		return nil, fmt.Errorf("graph: %s %s: %w", method, req.URL.Path, err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		c.logger.Debug("request succeeded",
			slog.String("method", method),
			slog.String("path", req.URL.Path),
			slog.Int("status", resp.StatusCode),
		)

		return resp, nil
	}

	// Redirects are not errors here; the /content probe reads Location.
	if resp.StatusCode >= http.StatusMultipleChoices && resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}

	errBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	if readErr != nil {
		errBody = []byte("(failed to read response body)")
	}

	c.logger.Warn("request failed",
		slog.String("method", method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &AuthError{Description: string(errBody)}
	}

	return nil, &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("request-id"),
		Message:    string(errBody),
		Err:        classifyStatus(resp.StatusCode),
	}
}

// stripBaseURL converts a full Graph URL (delta links, next links) into a
// path relative to the client's base URL.
func (c *Client) stripBaseURL(fullURL string) (string, error) {
	if len(fullURL) < len(c.baseURL) || fullURL[:len(c.baseURL)] != c.baseURL {
		return "", fmt.Errorf("graph: URL %q does not match base %q", fullURL, c.baseURL)
	}

	return fullURL[len(c.baseURL):], nil
}
