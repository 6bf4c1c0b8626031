package shopapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"storefront-client/internal/domain"
)

const networkErrorMessage = "Network error occurred"

// Tokens is the data block of a successful login.
type Tokens struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    *domain.User `json:"user"`
}

type authEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    Tokens `json:"data"`
}

type googleAuthRequest struct {
	IDToken string `json:"id_token"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		User *domain.User `json:"user"`
	} `json:"data"`
}

func (c *Client) GuestLogin(ctx context.Context) (*Tokens, error) {
	return c.login(ctx, "/api/auth/guest-login/", struct{}{})
}

func (c *Client) GoogleLogin(ctx context.Context, idToken string) (*Tokens, error) {
	return c.login(ctx, "/api/auth/google-auth/", googleAuthRequest{IDToken: idToken})
}

// login reads the envelope even on 4xx because the backend reports rejected
// logins as {success:false, message}.
func (c *Client) login(ctx context.Context, path string, in interface{}) (*Tokens, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, in)
	if err != nil {
		return nil, err
	}
	// Login must never reuse a stale bearer token.
	req.Header.Del("Authorization")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("path", path).Warn("login request failed")
		return nil, errors.Wrap(&domain.LoginError{Message: networkErrorMessage}, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(&domain.LoginError{Message: networkErrorMessage}, err.Error())
	}

	var env authEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &domain.HTTPError{Method: http.MethodPost, Path: path, Status: resp.StatusCode, Body: string(body)}
		}
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if !env.Success {
		return nil, &domain.LoginError{Message: env.Message}
	}
	if env.Data.Access == "" {
		return nil, &domain.LoginError{Message: "login response carried no access token"}
	}
	return &env.Data, nil
}

// VerifyToken asks the backend whether token still names a user. A rejected
// token matches domain.ErrAuthRequired.
func (c *Client) VerifyToken(ctx context.Context, token string) (*domain.User, error) {
	var env verifyEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/auth/verify-token/", verifyRequest{Token: token}, &env); err != nil {
		return nil, err
	}
	if !env.Success || env.Data.User == nil {
		return nil, errors.Wrap(domain.ErrAuthRequired, env.Message)
	}
	return env.Data.User, nil
}
