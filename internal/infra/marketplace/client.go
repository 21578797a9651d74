// Package marketplace implements the REST clients for the marketplace backend.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"walletd/config"
	domainerrors "walletd/internal/domain/errors"
	"walletd/internal/domain/entity"
	"walletd/internal/domain/service"
	"walletd/internal/infra/auth"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// Client talks to the marketplace backend. One instance implements the auth
// endpoint plus the read-only resource clients proxied by the control surface.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cfg        config.MarketplaceConfig
	logger     *slog.Logger
}

// Params defines the required parameters
type Params struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

// NewClient is the constructor for Client.
func NewClient(params Params) (*Client, error) {
	cfg := params.Config.Marketplace
	if cfg.BaseURL == "" {
		return nil, errors.New("marketplace base URL must be provided")
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{},
		cfg:        cfg,
		logger:     params.Logger,
	}, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

// Login exchanges derived credentials for an access token. The fixed login
// timeout applies; a timeout is reported the same way as any network failure.
func (c *Client) Login(ctx context.Context, creds service.Credentials) (*service.LoginResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.LoginTimeout)
	defer cancel()

	body, err := json.Marshal(loginRequest{Username: creds.Username, Password: creds.Password})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/login", bytes.NewReader(body))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domainerrors.ErrLoginFailed.WrapMessage(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domainerrors.ErrLoginFailed.WrapMessage("backend returned status " + resp.Status)
	}

	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.AccessToken == "" {
		return nil, domainerrors.ErrLoginFailed.WrapMessage("backend returned no access token")
	}

	userID, err := auth.SubjectFromToken(out.AccessToken)
	if err != nil {
		return nil, domainerrors.ErrLoginFailed.WrapMessage(err.Error())
	}

	return &service.LoginResult{AccessToken: out.AccessToken, UserID: userID}, nil
}

// FetchProfile retrieves the user record the token was issued for.
func (c *Client) FetchProfile(ctx context.Context, accessToken, userID string) (*entity.UserProfile, error) {
	var profile entity.UserProfile
	if err := c.getJSON(ctx, accessToken, "/users/"+url.PathEscape(userID), nil, &profile); err != nil {
		return nil, domainerrors.ErrProfileFetchFailed.WrapMessage(err.Error())
	}

	return &profile, nil
}

// getJSON performs an authenticated GET under the fixed fetch timeout.
func (c *Client) getJSON(ctx context.Context, accessToken, path string, query url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)

		return errors.Errorf("backend returned status %s for %s", resp.Status, path)
	}

	return errors.WithStack(json.NewDecoder(resp.Body).Decode(out))
}
