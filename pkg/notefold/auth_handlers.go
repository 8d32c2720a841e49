package notefold

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/notefold/notefold/pkg/auth"
	"github.com/notefold/notefold/pkg/client"
)

// handleSignUp registers a new account. When confirmation is required
// the response carries pending=true and no token.
func (a *App) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req client.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	user, token, pending, err := a.auth.SignUp(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, client.AuthResponse{
		Token:   token,
		User:    user,
		Pending: pending,
	})
}

// handleSignIn authenticates and issues a session token.
func (a *App) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req client.SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	user, token, err := a.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, auth.ErrPendingConfirmation):
			respondError(w, http.StatusForbidden, "Account pending confirmation")
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, client.AuthResponse{
		Token: token,
		User:  user,
	})
}

// handleSignOut revokes the caller's session token.
func (a *App) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromHeader(r); token != "" {
		a.auth.SignOut(token)
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleGetCurrentUser returns the user the bearer token belongs to.
func (a *App) handleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user := a.requireUser(w, r)
	if user == nil {
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// handleRefreshToken swaps the caller's token for a fresh one.
func (a *App) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	oldToken := auth.TokenFromHeader(r)
	if oldToken == "" {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	newToken, user, err := a.sessions.Rotate(oldToken)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	respondJSON(w, http.StatusOK, client.AuthResponse{
		Token: newToken,
		User:  user,
	})
}
