package review

import "time"

// Review request statuses.
const (
	RequestPending   = "pending"
	RequestInReview  = "in_review"
	RequestCompleted = "completed"
	RequestRejected  = "rejected"
)

// Review verdicts.
const (
	VerdictApproved     = "approved"
	VerdictRejected     = "rejected"
	VerdictNeedsChanges = "needs_changes"
)

// ValidRequestStatus reports whether s is a known review request status.
func ValidRequestStatus(s string) bool {
	switch s {
	case RequestPending, RequestInReview, RequestCompleted, RequestRejected:
		return true
	}
	return false
}

// ValidVerdict reports whether v is a known review verdict.
func ValidVerdict(v string) bool {
	switch v {
	case VerdictApproved, VerdictRejected, VerdictNeedsChanges:
		return true
	}
	return false
}

// User is an operator account. Credentials live in the auth package; this is
// the directory record exposed over the API.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	SecretHash string    `json:"-"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	Status     string    `json:"status"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Requester is a person or organization that files review requests.
type Requester struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Organization string    `json:"organization,omitempty"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Software is a catalog entry that can be put under review. Release is the
// vendor's own version string, unrelated to the record version counter.
type Software struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Vendor      string    `json:"vendor"`
	Release     string    `json:"release,omitempty"`
	Description string    `json:"description,omitempty"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ReviewRequest ties a requester to a software entry awaiting a verdict.
type ReviewRequest struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requester_id"`
	SoftwareID  string    `json:"software_id"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Review is a verdict written against a review request.
type Review struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id"`
	ReviewerID string    `json:"reviewer_id"`
	Verdict    string    `json:"verdict"`
	Summary    string    `json:"summary,omitempty"`
	Score      int       `json:"score"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Sparse update payloads. Nil fields are left untouched; the store builds the
// SET clause only from the fields that are present.

// UserUpdate carries optional user changes.
type UserUpdate struct {
	Email  *string `json:"email,omitempty"`
	Name   *string `json:"name,omitempty"`
	Role   *string `json:"role,omitempty"`
	Status *string `json:"status,omitempty"`
}

// Empty reports whether no field is set.
func (u UserUpdate) Empty() bool {
	return u.Email == nil && u.Name == nil && u.Role == nil && u.Status == nil
}

// RequesterUpdate carries optional requester changes.
type RequesterUpdate struct {
	Name         *string `json:"name,omitempty"`
	Email        *string `json:"email,omitempty"`
	Organization *string `json:"organization,omitempty"`
}

// Empty reports whether no field is set.
func (u RequesterUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.Organization == nil
}

// SoftwareUpdate carries optional software changes.
type SoftwareUpdate struct {
	Name        *string `json:"name,omitempty"`
	Vendor      *string `json:"vendor,omitempty"`
	Release     *string `json:"release,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Empty reports whether no field is set.
func (u SoftwareUpdate) Empty() bool {
	return u.Name == nil && u.Vendor == nil && u.Release == nil && u.Description == nil
}

// ReviewRequestUpdate carries optional review request changes.
type ReviewRequestUpdate struct {
	Status *string `json:"status,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

// Empty reports whether no field is set.
func (u ReviewRequestUpdate) Empty() bool {
	return u.Status == nil && u.Notes == nil
}

// ReviewUpdate carries optional review changes.
type ReviewUpdate struct {
	Verdict *string `json:"verdict,omitempty"`
	Summary *string `json:"summary,omitempty"`
	Score   *int    `json:"score,omitempty"`
}

// Empty reports whether no field is set.
func (u ReviewUpdate) Empty() bool {
	return u.Verdict == nil && u.Summary == nil && u.Score == nil
}
