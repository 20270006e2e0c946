package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/baobao-chat/baochat/internal/session"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the root of the chat backend (e.g. "http://localhost:8282").
	// The REST prefix "/api" is appended per request.
	BaseURL string
	// Credentials is the process-wide session store the client reads the
	// access token from and installs renewal results into.
	Credentials *session.Store
	// HTTPClient is used for all requests. If nil, a client with a
	// cookie jar is created; the jar carries the refresh cookie that
	// proves the session during credential renewal.
	HTTPClient *http.Client
	// CookiePath, when set, persists the backend's cookies to this
	// file so the refresh proof survives process restarts and the
	// session can resume via renewal instead of a password. Empty
	// keeps the jar in memory. Ignored when HTTPClient is set.
	CookiePath string
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client is the request gateway to the chat backend. Every request
// carries the current access token; on an authorization failure the
// client renews the credential (at most one renewal in flight across
// all callers) and replays the failed request exactly once.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	creds      *session.Store
	renew      singleflight.Group
}

// NewClient creates a Client for the given backend.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("api: BaseURL is required")
	}
	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("api: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if config.Credentials == nil {
		return nil, fmt.Errorf("api: Credentials store is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		var jar http.CookieJar
		if config.CookiePath != "" {
			jar, err = newPersistentJar(config.CookiePath, base, logger)
			if err != nil {
				return nil, err
			}
		} else {
			jar, err = cookiejar.New(nil)
			if err != nil {
				return nil, fmt.Errorf("api: create cookie jar: %w", err)
			}
		}
		httpClient = &http.Client{Jar: jar}
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/") + "/api",
		httpClient: httpClient,
		logger:     logger,
		creds:      config.Credentials,
	}, nil
}

// isAuthPath reports whether the logical path belongs to the
// authentication endpoints. Failures there must never trigger renewal:
// renewing in response to a failed renewal would recurse forever.
func isAuthPath(path string) bool {
	return strings.HasPrefix(path, "/auth/")
}

// do performs a request against the backend and decodes the JSON
// response into out (which may be nil). On 401/403 for a non-auth path
// it joins the shared in-flight renewal, then replays once with the
// renewed credential; a second authorization failure is terminal.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, requestBody, out any) error {
	var encoded []byte
	if requestBody != nil {
		var err error
		encoded, err = json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("api: encode request body: %w", err)
		}
	}

	responseBody, err := c.send(ctx, method, path, query, encoded)
	if err != nil && IsAuthStatus(err) && !isAuthPath(path) {
		if renewErr := c.renewCredential(ctx); renewErr != nil {
			return fmt.Errorf("%w: %s %s: %v", ErrAuthExpired, method, path, renewErr)
		}
		// Replay exactly once with the renewed credential.
		responseBody, err = c.send(ctx, method, path, query, encoded)
		if err != nil && IsAuthStatus(err) {
			if IsForbidden(err) {
				// The credential is fresh, access is simply denied.
				// A permission error, not an expired session.
				return err
			}
			return fmt.Errorf("%w: %s %s failed after replay: %v", ErrAuthExpired, method, path, err)
		}
	}
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(responseBody, out); err != nil {
			return fmt.Errorf("api: decode %s %s response: %w", method, path, err)
		}
	}
	return nil
}

// send performs one HTTP round trip. On 2xx it returns the body; on any
// other status it returns a *Error.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("api: create request: %w", err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token := c.creds.Token(); token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("api: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("api: read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	apiErr := &Error{StatusCode: response.StatusCode}
	if jsonErr := json.Unmarshal(responseBody, apiErr); jsonErr != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(responseBody))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(response.StatusCode)
		}
	}
	return responseBody, apiErr
}

// renewCredential exchanges the refresh proof for a new access token.
// Concurrent callers share one in-flight renewal: however many requests
// fail at once, the renewal endpoint is hit exactly once, and every
// caller waits for that shared outcome. Renewal failure clears the
// session, forcing re-authentication.
func (c *Client) renewCredential(ctx context.Context) error {
	_, err, _ := c.renew.Do("refresh", func() (any, error) {
		auth, err := c.Refresh(ctx)
		if err != nil {
			c.logger.Warn("credential renewal failed", "error", err)
			c.creds.Clear()
			return nil, err
		}
		c.creds.Set(auth.AccessToken, auth.User)
		c.logger.Debug("credential renewed", "user_id", auth.User.ID)
		return nil, nil
	})
	return err
}
