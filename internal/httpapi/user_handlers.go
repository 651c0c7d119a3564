package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"reviewdesk.org/internal/auth"
	"reviewdesk.org/internal/review"
)

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

type updateUserRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
	review.UserUpdate
}

type deleteRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.requireRole(w, r, auth.RoleAdmin) {
			return
		}
		a.listUsers(w, r)
	case http.MethodPost:
		if !a.requireRole(w, r, auth.RoleAdmin) {
			return
		}
		a.createUser(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(r, "/v1/users/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if !a.requireRole(w, r, auth.RoleAdmin) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		u, err := a.svc.GetUser(r.Context(), id)
		if err != nil {
			handleReviewError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	case http.MethodPatch:
		a.updateUser(w, r, id)
	case http.MethodDelete:
		a.deleteUser(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	users, err := a.svc.ListUsers(r.Context(), page)
	if err != nil {
		handleReviewError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, collection(users, page))
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	subjectID, rawKey, ok := a.mutationContext(w, r)
	if !ok {
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Password) < 8 {
		writeError(w, r, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	hash, err := auth.HashSecret(req.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = auth.StatusActive
	}
	u, err := a.svc.CreateUser(r.Context(), subjectID, rawKey, review.User{
		Email:      req.Email,
		SecretHash: hash,
		Name:       req.Name,
		Role:       req.Role,
		Status:     status,
	})
	if err != nil {
		if errors.Is(err, review.ErrAlreadyProcessed) {
			replayCreated(w)
			return
		}
		handleReviewError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/users/"+url.PathEscape(u.ID))
	writeJSON(w, http.StatusCreated, u)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, id string) {
	subjectID, rawKey, ok := a.mutationContext(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.svc.UpdateUser(r.Context(), subjectID, rawKey, id, req.ExpectedVersion, req.UserUpdate)
	if err != nil {
		if errors.Is(err, review.ErrAlreadyProcessed) {
			replayMutation(w)
			return
		}
		handleReviewError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, id string) {
	subjectID, rawKey, ok := a.mutationContext(w, r)
	if !ok {
		return
	}
	var req deleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.DeleteUser(r.Context(), subjectID, rawKey, id, req.ExpectedVersion); err != nil {
		if errors.Is(err, review.ErrAlreadyProcessed) {
			replayMutation(w)
			return
		}
		handleReviewError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
