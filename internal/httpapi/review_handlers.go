package httpapi

import (
	"errors"
	"net/http"
	"net/url"

	"reviewdesk.org/internal/auth"
	"reviewdesk.org/internal/review"
)

type createRequestRequest struct {
	RequesterID string `json:"requester_id"`
	SoftwareID  string `json:"software_id"`
	Status      string `json:"status"`
	Notes       string `json:"notes"`
}

type updateRequestRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
	review.ReviewRequestUpdate
}

type createReviewRequest struct {
	RequestID string `json:"request_id"`
	Verdict   string `json:"verdict"`
	Summary   string `json:"summary"`
	Score     int    `json:"score"`
}

type updateReviewRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
	review.ReviewUpdate
}

func (a *API) handleRequestsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		page, err := pageFromQuery(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		items, err := a.svc.ListRequests(r.Context(), page)
		if err != nil {
			handleReviewError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, collection(items, page))
	case http.MethodPost:
		a.createRequest(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRequestResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(r, "/v1/review-requests/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		item, err := a.svc.GetRequest(r.Context(), id)
		if err != nil {
			handleReviewError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodPatch:
		a.updateRequest(w, r, id)
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
		if err := a.svc.DeleteRequest(r.Context(), subjectID, rawKey, id, req.ExpectedVersion); err != nil {
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

func (a *API) createRequest(w http.ResponseWriter, r *http.Request) {
	subjectID, rawKey, ok := a.mutationContext(w, r)
	if !ok {
		return
	}
	var req createRequestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	item, err := a.svc.CreateRequest(r.Context(), subjectID, rawKey, review.ReviewRequest{
		RequesterID: req.RequesterID,
		SoftwareID:  req.SoftwareID,
		Status:      req.Status,
		Notes:       req.Notes,
	})
	if err != nil {
		if errors.Is(err, review.ErrAlreadyProcessed) {
			replayCreated(w)
			return
		}
		handleReviewError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/review-requests/"+url.PathEscape(item.ID))
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) updateRequest(w http.ResponseWriter, r *http.Request, id string) {
	subjectID, rawKey, ok := a.mutationContext(w, r)
	if !ok {
		return
	}
	var req updateRequestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	item, err := a.svc.UpdateRequest(r.Context(), subjectID, rawKey, id, req.ExpectedVersion, req.ReviewRequestUpdate)
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

func (a *API) handleReviewsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		page, err := pageFromQuery(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		items, err := a.svc.ListReviews(r.Context(), page)
		if err != nil {
			handleReviewError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, collection(items, page))
	case http.MethodPost:
		if !a.requireRole(w, r, auth.RoleReviewer) {
			return
		}
		a.createReview(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleReviewResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(r, "/v1/reviews/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		item, err := a.svc.GetReview(r.Context(), id)
		if err != nil {
			handleReviewError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodPatch:
		if !a.requireRole(w, r, auth.RoleReviewer) {
			return
		}
		a.updateReview(w, r, id)
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
		if err := a.svc.DeleteReview(r.Context(), subjectID, rawKey, id, req.ExpectedVersion); err != nil {
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

func (a *API) createReview(w http.ResponseWriter, r *http.Request) {
	subjectID, rawKey, ok := a.mutationContext(w, r)
	if !ok {
		return
	}
	var req createReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	item, err := a.svc.CreateReview(r.Context(), subjectID, rawKey, review.Review{
		RequestID:  req.RequestID,
		ReviewerID: principal.SubjectID,
		Verdict:    req.Verdict,
		Summary:    req.Summary,
		Score:      req.Score,
	})
	if err != nil {
		if errors.Is(err, review.ErrAlreadyProcessed) {
			replayCreated(w)
			return
		}
		handleReviewError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/reviews/"+url.PathEscape(item.ID))
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) updateReview(w http.ResponseWriter, r *http.Request, id string) {
	subjectID, rawKey, ok := a.mutationContext(w, r)
	if !ok {
		return
	}
	var req updateReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	item, err := a.svc.UpdateReview(r.Context(), subjectID, rawKey, id, req.ExpectedVersion, req.ReviewUpdate)
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
