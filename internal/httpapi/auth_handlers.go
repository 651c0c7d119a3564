package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"reviewdesk.org/internal/audit"
	"reviewdesk.org/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	cred, err := a.verifier.Validate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "authentication error")
		return
	}

	token, rec, err := a.issuer.Issue(cred.SubjectID, cred.Role)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	if err := a.tokens.Create(r.Context(), rec); err != nil {
		writeError(w, r, http.StatusInternalServerError, "token persistence failed")
		return
	}
	a.cache.Insert(auth.CacheEntry{TokenID: rec.ID, SubjectID: rec.SubjectID})

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"subject_id": cred.SubjectID,
		"token_id":   rec.ID,
		"expires_at": rec.ExpiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: rec.ExpiresAt,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := a.tokens.MarkRevoked(r.Context(), principal.TokenID); err != nil {
		writeError(w, r, http.StatusInternalServerError, "revocation failed")
		return
	}
	// Evict synchronously; the reconciler would catch it on the next pass,
	// but a logged-out token must die immediately.
	a.cache.Remove(auth.CacheEntry{TokenID: principal.TokenID, SubjectID: principal.SubjectID})

	_ = audit.LogEvent(r.Context(), "auth.logout", map[string]any{
		"subject_id": principal.SubjectID,
		"token_id":   principal.TokenID,
	})

	w.WriteHeader(http.StatusNoContent)
}
