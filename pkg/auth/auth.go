// Package auth provides session management and a small authenticator
// over the user store.
//
// Both types are plain injectable values rather than package state, so
// tests can construct isolated instances. Sessions are held in process
// memory; a deployment with multiple instances would need an external
// session store instead.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/notefold/notefold/pkg/models"
	"github.com/notefold/notefold/pkg/store"
)

// ErrInvalidCredentials is returned by SignIn for an unknown email or a
// wrong password. The two cases are deliberately indistinguishable.
var ErrInvalidCredentials = fmt.Errorf("invalid credentials")

// ErrPendingConfirmation is returned when a sign-up succeeded but the
// account still needs confirmation before it can sign in.
var ErrPendingConfirmation = fmt.Errorf("account pending confirmation")

// generateToken returns a 256-bit random token as a 64-character hex
// string.
func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// TokenFromHeader extracts the bearer token from an Authorization
// header, with or without the "Bearer " prefix.
func TokenFromHeader(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	const bearerPrefix = "Bearer "
	if len(auth) > len(bearerPrefix) && auth[:len(bearerPrefix)] == bearerPrefix {
		return auth[len(bearerPrefix):]
	}
	return auth
}

// Sessions maps bearer tokens to signed in users.
type Sessions struct {
	mu      sync.RWMutex
	byToken map[string]*models.User
}

func NewSessions() *Sessions {
	return &Sessions{byToken: make(map[string]*models.User)}
}

// Issue creates a fresh token for user.
func (s *Sessions) Issue(user *models.User) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate auth token: %w", err)
	}
	s.mu.Lock()
	s.byToken[token] = user
	s.mu.Unlock()
	return token, nil
}

// Lookup returns the user a token belongs to, or nil.
func (s *Sessions) Lookup(token string) *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byToken[token]
}

// Revoke forgets a token. Unknown tokens are ignored.
func (s *Sessions) Revoke(token string) {
	s.mu.Lock()
	delete(s.byToken, token)
	s.mu.Unlock()
}

// Rotate replaces a token with a fresh one for the same user.
func (s *Sessions) Rotate(oldToken string) (string, *models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byToken[oldToken]
	if !ok {
		return "", nil, fmt.Errorf("unknown session token")
	}
	token, err := generateToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate auth token: %w", err)
	}
	delete(s.byToken, oldToken)
	s.byToken[token] = user
	return token, user, nil
}

// Authenticator implements the sign-up/sign-in/sign-out contract over
// the user store.
type Authenticator struct {
	store    store.Store
	sessions *Sessions

	// RequireConfirmation makes SignUp create the account in a pending
	// state: no session is issued and SignIn fails until Confirm is
	// called for the email.
	RequireConfirmation bool

	mu        sync.Mutex
	passwords map[string][sha256.Size]byte
	pending   map[string]bool
}

func NewAuthenticator(s store.Store, sessions *Sessions) *Authenticator {
	return &Authenticator{
		store:     s,
		sessions:  sessions,
		passwords: make(map[string][sha256.Size]byte),
		pending:   make(map[string]bool),
	}
}

// GetSession resolves a bearer token to a user identifier, or false.
func (a *Authenticator) GetSession(token string) (*models.User, bool) {
	user := a.sessions.Lookup(token)
	return user, user != nil
}

// SignUp creates the account. When confirmation is required the returned
// token is empty and pending is true.
func (a *Authenticator) SignUp(ctx context.Context, email, password, name string) (*models.User, string, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, "", false, fmt.Errorf("email must not be blank")
	}
	if password == "" {
		return nil, "", false, fmt.Errorf("password must not be blank")
	}

	existing, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, "", false, fmt.Errorf("user with email %s already exists", email)
	}

	user := &models.User{
		Email:     email,
		Name:      name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		return nil, "", false, fmt.Errorf("failed to create user: %w", err)
	}

	a.mu.Lock()
	a.passwords[email] = sha256.Sum256([]byte(password))
	if a.RequireConfirmation {
		a.pending[email] = true
	}
	a.mu.Unlock()

	if a.RequireConfirmation {
		return user, "", true, nil
	}

	token, err := a.sessions.Issue(user)
	if err != nil {
		return nil, "", false, err
	}
	return user, token, false, nil
}

// Confirm completes a pending sign-up.
func (a *Authenticator) Confirm(email string) {
	email = strings.ToLower(strings.TrimSpace(email))
	a.mu.Lock()
	delete(a.pending, email)
	a.mu.Unlock()
}

// SignIn verifies credentials and issues a session token. Accounts
// created outside SignUp have no recorded password and accept any.
func (a *Authenticator) SignIn(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, "", ErrInvalidCredentials
	}

	a.mu.Lock()
	if a.pending[email] {
		a.mu.Unlock()
		return nil, "", ErrPendingConfirmation
	}
	hash, hasPassword := a.passwords[email]
	a.mu.Unlock()

	if hasPassword {
		given := sha256.Sum256([]byte(password))
		if subtle.ConstantTimeCompare(hash[:], given[:]) != 1 {
			return nil, "", ErrInvalidCredentials
		}
	}

	token, err := a.sessions.Issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// SignOut revokes the session token.
func (a *Authenticator) SignOut(token string) {
	a.sessions.Revoke(token)
}
