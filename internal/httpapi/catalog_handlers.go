package httpapi

import (
	"errors"
	"net/http"
	"net/url"

	"reviewdesk.org/internal/auth"
	"reviewdesk.org/internal/review"
)

type createRequesterRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Organization string `json:"organization"`
}

type updateRequesterRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
	review.RequesterUpdate
}

type createSoftwareRequest struct {
	Name        string `json:"name"`
	Vendor      string `json:"vendor"`
	Release     string `json:"release"`
	Description string `json:"description"`
}

type updateSoftwareRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
	review.SoftwareUpdate
}

func (a *API) handleRequestersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		page, err := pageFromQuery(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		items, err := a.svc.ListRequesters(r.Context(), page)
		if err != nil {
			handleReviewError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, collection(items, page))
	case http.MethodPost:
		a.createRequester(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRequesterResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(r, "/v1/requesters/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		item, err := a.svc.GetRequester(r.Context(), id)
		if err != nil {
			handleReviewError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodPatch:
		a.updateRequester(w, r, id)
	case http.MethodDelete:
		if !a.requireRole(w, r, auth.RoleAdmin) {
			return
		}
		subjectID, rawKey, ok := a.mutationContext(w, r)
		if !ok {
			return
		}
		var req deleteRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.svc.DeleteRequester(r.Context(), subjectID, rawKey, id, req.ExpectedVersion); err != nil {
			if errors.Is(err, review.ErrAlreadyProcessed) {
				replayMutation(w)
				return
			}
			handleReviewError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) createRequester(w http.ResponseWriter, r *http.Request) {
	subjectID, rawKey, ok := a.mutationContext(w, r)
	if !ok {
		return
	}
	var req createRequesterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	item, err := a.svc.CreateRequester(r.Context(), subjectID, rawKey, review.Requester{
		Name:         req.Name,
		Email:        req.Email,
		Organization: req.Organization,
	})
	if err != nil {
		if errors.Is(err, review.ErrAlreadyProcessed) {
			replayCreated(w)
			return
		}
		handleReviewError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/requesters/"+url.PathEscape(item.ID))
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) updateRequester(w http.ResponseWriter, r *http.Request, id string) {
	subjectID, rawKey, ok := a.mutationContext(w, r)
	if !ok {
		return
	}
	var req updateRequesterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	item, err := a.svc.UpdateRequester(r.Context(), subjectID, rawKey, id, req.ExpectedVersion, req.RequesterUpdate)
	if err != nil {
		if errors.Is(err, review.ErrAlreadyProcessed) {
			replayMutation(w)
			return
		}
		handleReviewError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) handleSoftwareCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		page, err := pageFromQuery(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		items, err := a.svc.ListSoftware(r.Context(), page)
		if err != nil {
			handleReviewError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, collection(items, page))
	case http.MethodPost:
		a.createSoftware(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleSoftwareResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(r, "/v1/software/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		item, err := a.svc.GetSoftware(r.Context(), id)
		if err != nil {
			handleReviewError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodPatch:
		a.updateSoftware(w, r, id)
	case http.MethodDelete:
		if !a.requireRole(w, r, auth.RoleAdmin) {
			return
		}
		subjectID, rawKey, ok := a.mutationContext(w, r)
		if !ok {
			return
		}
		var req deleteRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.svc.DeleteSoftware(r.Context(), subjectID, rawKey, id, req.ExpectedVersion); err != nil {
			if errors.Is(err, review.ErrAlreadyProcessed) {
				replayMutation(w)
				return
			}
			handleReviewError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) createSoftware(w http.ResponseWriter, r *http.Request) {
	subjectID, rawKey, ok := a.mutationContext(w, r)
	if !ok {
		return
	}
	var req createSoftwareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	item, err := a.svc.CreateSoftware(r.Context(), subjectID, rawKey, review.Software{
		Name:        req.Name,
		Vendor:      req.Vendor,
		Release:     req.Release,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, review.ErrAlreadyProcessed) {
			replayCreated(w)
			return
		}
		handleReviewError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/software/"+url.PathEscape(item.ID))
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) updateSoftware(w http.ResponseWriter, r *http.Request, id string) {
	subjectID, rawKey, ok := a.mutationContext(w, r)
	if !ok {
		return
	}
	var req updateSoftwareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	item, err := a.svc.UpdateSoftware(r.Context(), subjectID, rawKey, id, req.ExpectedVersion, req.SoftwareUpdate)
	if err != nil {
		if errors.Is(err, review.ErrAlreadyProcessed) {
			replayMutation(w)
			return
		}
		handleReviewError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
