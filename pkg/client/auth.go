package client

import (
	"context"
	"net/http"

	"github.com/notefold/notefold/pkg/models"
)

// SignUpRequest is the payload for user registration.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// SignInRequest is the payload for user authentication.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by sign-up and sign-in. Pending is set when
// the account still needs confirmation; Token is empty in that case.
type AuthResponse struct {
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
	Pending bool         `json:"pending,omitempty"`
}

// SignUp registers a new user. On success the client stores the token
// for subsequent requests unless the account is pending confirmation.
func (c *Client) SignUp(ctx context.Context, email, password, name string) (*AuthResponse, error) {
	req := SignUpRequest{Email: email, Password: password, Name: name}
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/signup", req)
	if err != nil {
		return nil, err
	}

	var result AuthResponse
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	if result.Token != "" {
		c.SetAuthToken(result.Token)
	}
	return &result, nil
}

// SignIn authenticates and stores the token for subsequent requests.
func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthResponse, error) {
	req := SignInRequest{Email: email, Password: password}
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/signin", req)
	if err != nil {
		return nil, err
	}

	var result AuthResponse
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	c.SetAuthToken(result.Token)
	return &result, nil
}

// SignOut invalidates the current session and clears the stored token.
func (c *Client) SignOut(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/signout", nil)
	if err != nil {
		return err
	}
	if err := decodeResponse(resp, nil); err != nil {
		return err
	}

	c.authToken = ""
	return nil
}

// GetCurrentUser returns the user the stored token belongs to.
func (c *Client) GetCurrentUser(ctx context.Context) (*models.User, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		return nil, err
	}

	var result models.User
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}
