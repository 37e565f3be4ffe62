package api

import (
	"context"
	"net/http"

	d "github.com/fjod/go_cart/storefront/domain"
)

type AuthClient struct {
	c *Client
}

func NewAuthClient(c *Client) *AuthClient {
	return &AuthClient{c: c}
}

type authResponse struct {
	Token string  `json:"token"`
	User  *d.User `json:"user"`
}

type identityResponse struct {
	User *d.User `json:"user"`
}

// Login returns the issued token and, if the server sent one, the user.
func (a *AuthClient) Login(ctx context.Context, creds d.Credentials) (string, *d.User, error) {
	var resp authResponse
	if err := a.c.do(ctx, http.MethodPost, "/api/v1/auth/login", creds, &resp); err != nil {
		return "", nil, err
	}
	if resp.Token == "" {
		return "", nil, d.NewError(d.KindAuthentication, d.CodeInvalidCredentials, "Login failed: no token issued.")
	}
	return resp.Token, resp.User, nil
}

func (a *AuthClient) Register(ctx context.Context, profile d.RegistrationProfile) (string, *d.User, error) {
	var resp authResponse
	if err := a.c.do(ctx, http.MethodPost, "/api/v1/auth/register", profile, &resp); err != nil {
		return "", nil, err
	}
	if resp.Token == "" {
		return "", nil, d.NewError(d.KindAuthentication, d.CodeInvalidCredentials, "Registration failed: no token issued.")
	}
	return resp.Token, resp.User, nil
}

func (a *AuthClient) Logout(ctx context.Context) error {
	return a.c.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil)
}

// Identity looks up the user behind the current token.
func (a *AuthClient) Identity(ctx context.Context) (*d.User, error) {
	var resp identityResponse
	if err := a.c.do(ctx, http.MethodGet, "/api/v1/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, d.WrapError(d.KindInfrastructure, d.CodeServerError, "", errEmptyIdentity)
	}
	return resp.User, nil
}
