package review

import (
	"fmt"
	"strings"

	"reviewdesk.org/internal/auth"
	"reviewdesk.org/internal/ids"
)

const (
	minScore = 1
	maxScore = 5
)

func defaultID() string { return ids.New() }

func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.IndexByte(s, '@')
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t")
}

func validateUser(u User) error {
	if err := requireField("name", u.Name); err != nil {
		return err
	}
	if !validEmail(u.Email) {
		return fmt.Errorf("%w: email is malformed", ErrInvalidInput)
	}
	if !auth.ValidRole(u.Role) {
		return fmt.Errorf("%w: unsupported role %q", ErrInvalidInput, u.Role)
	}
	if u.Status != "" && u.Status != auth.StatusActive && u.Status != auth.StatusDisabled {
		return fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, u.Status)
	}
	return nil
}

func validateUserUpdate(u UserUpdate) error {
	if u.Email != nil && !validEmail(*u.Email) {
		return fmt.Errorf("%w: email is malformed", ErrInvalidInput)
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return fmt.Errorf("%w: name must not be blank", ErrInvalidInput)
	}
	if u.Role != nil && !auth.ValidRole(*u.Role) {
		return fmt.Errorf("%w: unsupported role %q", ErrInvalidInput, *u.Role)
	}
	if u.Status != nil && *u.Status != auth.StatusActive && *u.Status != auth.StatusDisabled {
		return fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, *u.Status)
	}
	return nil
}

func validateRequester(r Requester) error {
	if err := requireField("name", r.Name); err != nil {
		return err
	}
	if !validEmail(r.Email) {
		return fmt.Errorf("%w: email is malformed", ErrInvalidInput)
	}
	return nil
}

func validateRequesterUpdate(u RequesterUpdate) error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return fmt.Errorf("%w: name must not be blank", ErrInvalidInput)
	}
	if u.Email != nil && !validEmail(*u.Email) {
		return fmt.Errorf("%w: email is malformed", ErrInvalidInput)
	}
	return nil
}

func validateSoftware(s Software) error {
	if err := requireField("name", s.Name); err != nil {
		return err
	}
	return requireField("vendor", s.Vendor)
}

func validateSoftwareUpdate(u SoftwareUpdate) error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return fmt.Errorf("%w: name must not be blank", ErrInvalidInput)
	}
	if u.Vendor != nil && strings.TrimSpace(*u.Vendor) == "" {
		return fmt.Errorf("%w: vendor must not be blank", ErrInvalidInput)
	}
	return nil
}

func validateRequest(r ReviewRequest) error {
	if !ids.Valid(r.RequesterID) {
		return fmt.Errorf("%w: requester_id is malformed", ErrInvalidInput)
	}
	if !ids.Valid(r.SoftwareID) {
		return fmt.Errorf("%w: software_id is malformed", ErrInvalidInput)
	}
	if r.Status != "" && !ValidRequestStatus(r.Status) {
		return fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, r.Status)
	}
	return nil
}

func validateRequestUpdate(u ReviewRequestUpdate) error {
	if u.Status != nil && !ValidRequestStatus(*u.Status) {
		return fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, *u.Status)
	}
	return nil
}

func validateReview(r Review) error {
	if !ids.Valid(r.RequestID) {
		return fmt.Errorf("%w: request_id is malformed", ErrInvalidInput)
	}
	if err := requireField("reviewer_id", r.ReviewerID); err != nil {
		return err
	}
	if !ValidVerdict(r.Verdict) {
		return fmt.Errorf("%w: unsupported verdict %q", ErrInvalidInput, r.Verdict)
	}
	if r.Score < minScore || r.Score > maxScore {
		return fmt.Errorf("%w: score must be between %d and %d", ErrInvalidInput, minScore, maxScore)
	}
	return nil
}

func validateReviewUpdate(u ReviewUpdate) error {
	if u.Verdict != nil && !ValidVerdict(*u.Verdict) {
		return fmt.Errorf("%w: unsupported verdict %q", ErrInvalidInput, *u.Verdict)
	}
	if u.Score != nil && (*u.Score < minScore || *u.Score > maxScore) {
		return fmt.Errorf("%w: score must be between %d and %d", ErrInvalidInput, minScore, maxScore)
	}
	return nil
}
