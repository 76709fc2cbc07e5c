package auth

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// APIClient issues bearer authenticated requests against the resource API.
// On a 401 it renews the grant through the auth service and replays the
// request exactly once; a rejected renewal tears the session down since
// nothing recoverable is left.
type APIClient struct {
	baseURL  string
	http     *http.Client
	auth     AuthAPI
	sessions *Manager
	logger   Logger
}

type APIClientOption func(*APIClient)

func APIClientWithLogger(logger Logger) APIClientOption {
	return func(c *APIClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func APIClientWithHTTPClient(client *http.Client) APIClientOption {
	return func(c *APIClient) {
		if client != nil {
			c.http = client
		}
	}
}

func NewAPIClient(baseURL string, auth AuthAPI, sessions *Manager, opts ...APIClientOption) *APIClient {
	c := &APIClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 15 * time.Second},
		auth:     auth,
		sessions: sessions,
		logger:   defLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends req with the current access token attached. Relative URLs are
// resolved against the configured base.
func (c *APIClient) Do(req *http.Request) (*http.Response, error) {
	sess := c.sessions.Snapshot()
	if !sess.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	req.Header.Set("Authorization", "Bearer "+sess.Credentials.AccessToken)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "api client: request")
	}

	if res.StatusCode != http.StatusUnauthorized {
		return res, nil
	}

	io.Copy(io.Discard, res.Body)
	res.Body.Close()

	grant, err := c.renew(req.Context(), sess.Credentials.RefreshToken)
	if err != nil {
		return nil, err
	}

	retry, err := cloneRequest(req)
	if err != nil {
		return nil, err
	}
	retry.Header.Set("Authorization", "Bearer "+grant.AccessToken)

	res, err = c.http.Do(retry)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "api client: retry")
	}

	return res, nil
}

// Get is a convenience wrapper for bearer authenticated GETs.
func (c *APIClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "api client: build request")
	}
	return c.Do(req)
}

func (c *APIClient) renew(ctx context.Context, refreshToken string) (TokenGrant, error) {
	grant, err := c.auth.Refresh(ctx, refreshToken)
	if err != nil {
		c.logger.Warn("token renewal rejected, ending session: %s", err)
		if lerr := c.sessions.Logout(ctx); lerr != nil {
			c.logger.Error("logout after rejected renewal: %s", lerr)
		}
		return TokenGrant{}, goerrors.Wrap(err, goerrors.CategoryAuth, "api client: renew grant")
	}

	if err := c.sessions.Renew(ctx, grant); err != nil {
		return TokenGrant{}, err
	}

	return grant, nil
}

// cloneRequest rebuilds a request so the body can be sent again. Requests
// built through http.NewRequest carry GetBody for the common body types.
func cloneRequest(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.Body == nil || req.GetBody == nil {
		if req.Body != nil {
			return nil, goerrors.New(
				"api client: request body cannot be replayed",
				goerrors.CategoryOperation,
			)
		}
		return retry, nil
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "api client: rewind body")
	}
	retry.Body = body

	return retry, nil
}
