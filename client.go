package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// AuthClient talks to the remote authentication service. Credentials are
// verified there; this side only relays payloads and keeps whatever grant
// comes back.
type AuthClient struct {
	baseURL string
	http    *http.Client
	logger  Logger
}

type AuthClientOption func(*AuthClient)

func AuthClientWithLogger(logger Logger) AuthClientOption {
	return func(c *AuthClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func AuthClientWithHTTPClient(client *http.Client) AuthClientOption {
	return func(c *AuthClient) {
		if client != nil {
			c.http = client
		}
	}
}

func NewAuthClient(baseURL string, opts ...AuthClientOption) *AuthClient {
	c := &AuthClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  defLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type loginRequestBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type grantResponseBody struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       int64  `json:"userId"`
}

// Login exchanges credentials for a token grant. Any rejection maps to the
// same generic error so callers cannot tell a bad username from a bad
// password.
func (c *AuthClient) Login(ctx context.Context, username, password string) (TokenGrant, error) {
	body := loginRequestBody{Username: username, Password: password}

	var grant grantResponseBody
	if err := c.post(ctx, "/login", body, &grant); err != nil {
		if isRemoteRejection(err) {
			return TokenGrant{}, ErrInvalidCredentials
		}
		return TokenGrant{}, err
	}

	return TokenGrant{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		UserID:       grant.UserID,
	}, nil
}

// Signup registers a new account. The new user is NOT signed in; they go
// through the regular login flow afterwards.
func (c *AuthClient) Signup(ctx context.Context, payload SignupPayload) error {
	if err := c.post(ctx, "/signup", payload, nil); err != nil {
		if isRemoteRejection(err) {
			return ErrSignupFailed
		}
		return err
	}
	return nil
}

type refreshRequestBody struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh trades the refresh token for a new grant.
func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (TokenGrant, error) {
	body := refreshRequestBody{RefreshToken: refreshToken}

	var grant grantResponseBody
	if err := c.post(ctx, "/refresh", body, &grant); err != nil {
		if isRemoteRejection(err) {
			return TokenGrant{}, ErrRefreshRejected
		}
		return TokenGrant{}, err
	}

	return TokenGrant{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		UserID:       grant.UserID,
	}, nil
}

func (c *AuthClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "auth client: encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "auth client: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "auth client: "+path)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		c.logger.Warn("auth endpoint %s returned %d", path, res.StatusCode)
		return goerrors.New(
			fmt.Sprintf("auth endpoint %s rejected the request", path),
			goerrors.CategoryAuth,
		).WithTextCode("REMOTE_REJECTED")
	}

	if out == nil {
		io.Copy(io.Discard, res.Body)
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "auth client: decode response")
	}

	return nil
}

func isRemoteRejection(err error) bool {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode == "REMOTE_REJECTED"
	}
	return false
}
