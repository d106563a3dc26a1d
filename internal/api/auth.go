package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"docdesk/internal/domain"
)

// SessionLifetime is how long a token is trusted when it carries no exp claim.
const SessionLifetime = 7 * 24 * time.Hour

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, identifier, password string) (string, error) {
	var res struct {
		Token string `json:"token"`
	}
	body := map[string]string{"identifier": identifier, "password": password}
	if err := c.Call(ctx, http.MethodPost, "/api/auth/login", nil, body, &res); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if res.Token == "" {
		return "", &APIError{Message: "login response carried no token"}
	}
	return res.Token, nil
}

// Register creates an account and returns its bearer token.
func (c *Client) Register(ctx context.Context, username, email, password string) (string, error) {
	var res struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "email": email, "password": password}
	if err := c.Call(ctx, http.MethodPost, "/api/auth/register", nil, body, &res); err != nil {
		return "", fmt.Errorf("register: %w", err)
	}
	return res.Token, nil
}

// CheckSession asks the server whether token is still valid.
func (c *Client) CheckSession(ctx context.Context, token string) (bool, error) {
	var res struct {
		Valid bool `json:"valid"`
	}
	body := map[string]string{"token": token}
	if err := c.Call(ctx, http.MethodPost, "/api/auth/check-session", nil, body, &res); err != nil {
		return false, err
	}
	return res.Valid, nil
}

// Me returns the user the current token belongs to.
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	u := &domain.User{}
	if err := c.Call(ctx, http.MethodGet, "/api/auth/me", nil, nil, u); err != nil {
		return nil, err
	}
	return u, nil
}

// InspectToken reads subject and expiry out of a JWT without verifying its
// signature. Opaque tokens get the default lifetime counted from issuedAt.
func InspectToken(token string, issuedAt time.Time) domain.Session {
	s := domain.Session{Token: token, ExpiresAt: issuedAt.Add(SessionLifetime)}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return s
	}
	for _, key := range []string{"username", "sub", "email"} {
		if v, ok := claims[key].(string); ok && v != "" {
			s.Subject = v
			break
		}
	}
	if exp, ok := claims["exp"].(float64); ok && exp > 0 {
		s.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return s
}

// Health probes HEAD /api/health under the configured timeout.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodHead, "/api/health", nil, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &NetworkError{Status: resp.StatusCode}
	}
	return nil
}
