package review

import "context"

// CommitGuard is invoked by the store inside the insert transaction right
// before commit. A non-nil return aborts the transaction, so an insert and
// its idempotency mark land together or not at all.
type CommitGuard func(ctx context.Context) error

// Page bounds a collection listing. Sort must come from the per-entity column
// allow-list; stores resolve it before any SQL is built.
type Page struct {
	Limit int
	After string
	Sort  string
}

// UserStore persists user directory records.
type UserStore interface {
	CreateUser(ctx context.Context, u User, guard CommitGuard) error
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context, p Page) ([]User, error)
	UpdateUser(ctx context.Context, id string, expected int64, upd UserUpdate) (User, error)
	DeleteUser(ctx context.Context, id string, expected int64) error
}

// RequesterStore persists requester records.
type RequesterStore interface {
	CreateRequester(ctx context.Context, r Requester, guard CommitGuard) error
	GetRequester(ctx context.Context, id string) (Requester, error)
	ListRequesters(ctx context.Context, p Page) ([]Requester, error)
	UpdateRequester(ctx context.Context, id string, expected int64, upd RequesterUpdate) (Requester, error)
	DeleteRequester(ctx context.Context, id string, expected int64) error
}

// SoftwareStore persists software catalog entries.
type SoftwareStore interface {
	CreateSoftware(ctx context.Context, s Software, guard CommitGuard) error
	GetSoftware(ctx context.Context, id string) (Software, error)
	ListSoftware(ctx context.Context, p Page) ([]Software, error)
	UpdateSoftware(ctx context.Context, id string, expected int64, upd SoftwareUpdate) (Software, error)
	DeleteSoftware(ctx context.Context, id string, expected int64) error
}

// RequestStore persists review requests.
type RequestStore interface {
	CreateRequest(ctx context.Context, r ReviewRequest, guard CommitGuard) error
	GetRequest(ctx context.Context, id string) (ReviewRequest, error)
	ListRequests(ctx context.Context, p Page) ([]ReviewRequest, error)
	UpdateRequest(ctx context.Context, id string, expected int64, upd ReviewRequestUpdate) (ReviewRequest, error)
	DeleteRequest(ctx context.Context, id string, expected int64) error
}

// ReviewStore persists review verdicts.
type ReviewStore interface {
	CreateReview(ctx context.Context, r Review, guard CommitGuard) error
	GetReview(ctx context.Context, id string) (Review, error)
	ListReviews(ctx context.Context, p Page) ([]Review, error)
	UpdateReview(ctx context.Context, id string, expected int64, upd ReviewUpdate) (Review, error)
	DeleteReview(ctx context.Context, id string, expected int64) error
}

// Store bundles every entity contract; the Postgres store implements it all.
type Store interface {
	UserStore
	RequesterStore
	SoftwareStore
	RequestStore
	ReviewStore
}
