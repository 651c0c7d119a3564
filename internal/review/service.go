package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"reviewdesk.org/internal/audit"
	"reviewdesk.org/internal/idempotency"
	"reviewdesk.org/internal/obs"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// Marks is the idempotency bookkeeping the service depends on.
type Marks interface {
	CheckStatus(ctx context.Context, subjectID string, key idempotency.Key) (idempotency.Status, error)
	MarkProcessed(ctx context.Context, subjectID string, key idempotency.Key) (idempotency.Status, error)
	Unmark(ctx context.Context, subjectID string, key idempotency.Key) error
}

// Service orchestrates every mutation through the same sequence: validate the
// idempotency key, check for a replay, run the mutation, and mark the pair
// processed only after durable success. The check is an optimization; the
// conditional set inside MarkProcessed is the only exclusion point.
type Service struct {
	store Store
	marks Marks
	newID func() string
	now   func() time.Time
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithIDGenerator overrides entity id generation (useful for tests).
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithServiceClock overrides the time source (useful for tests).
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService wires the store and the idempotency marks.
func NewService(store Store, marks Marks, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		marks: marks,
		newID: defaultID,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// begin validates the raw key and short-circuits known replays.
func (s *Service) begin(ctx context.Context, subjectID, rawKey string) (idempotency.Key, error) {
	key, err := idempotency.ParseKey(rawKey)
	if err != nil {
		return idempotency.Key{}, err
	}
	status, err := s.marks.CheckStatus(ctx, subjectID, key)
	if err != nil {
		return idempotency.Key{}, err
	}
	if status == idempotency.Processed {
		obs.IncIdempotentReplay()
		return idempotency.Key{}, ErrAlreadyProcessed
	}
	return key, nil
}

// commitGate carries the conditional set for a create and remembers whether
// this caller won it. A won gate whose surrounding transaction then fails to
// commit must release the mark, otherwise a retry inside the TTL would be
// answered as a replay of an insert that never became durable.
type commitGate struct {
	svc       *Service
	subjectID string
	key       idempotency.Key
	won       bool
}

func (s *Service) gate(subjectID string, key idempotency.Key) *commitGate {
	return &commitGate{svc: s, subjectID: subjectID, key: key}
}

// run is the CommitGuard handed to the store. Losing the conditional set
// aborts the surrounding insert transaction and reports the replay.
func (g *commitGate) run(ctx context.Context) error {
	status, err := g.svc.marks.MarkProcessed(ctx, g.subjectID, g.key)
	if err != nil {
		return err
	}
	if status != idempotency.Processed {
		obs.IncIdempotentReplay()
		return ErrAlreadyProcessed
	}
	g.won = true
	return nil
}

// release hands the key back after a failed create. Detached from the request
// context so a cancelled request still gets to clean up; if the delete fails
// as well, the marker's TTL bounds how long retries stay blocked.
func (g *commitGate) release(ctx context.Context) {
	if !g.won {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := g.svc.marks.Unmark(ctx, g.subjectID, g.key); err != nil {
		obs.LogEntry(map[string]any{
			"ts":         g.svc.now().UTC().Format(time.RFC3339Nano),
			"level":      "warn",
			"msg":        "idempotency_unmark_failed",
			"subject_id": g.subjectID,
			"error":      err.Error(),
		})
	}
}

// mark records the pair after a durable update or delete. The mutation has
// already succeeded at this point, so a failed mark is logged and swallowed;
// a retried request would be stopped by the version guard anyway.
func (s *Service) mark(ctx context.Context, subjectID string, key idempotency.Key) {
	if _, err := s.marks.MarkProcessed(ctx, subjectID, key); err != nil {
		obs.LogEntry(map[string]any{
			"ts":         s.now().UTC().Format(time.RFC3339Nano),
			"level":      "warn",
			"msg":        "idempotency_mark_failed",
			"subject_id": subjectID,
			"error":      err.Error(),
		})
	}
}

func (s *Service) noteConflict(err error) error {
	if errors.Is(err, ErrEditConflict) {
		obs.IncEditConflict()
	}
	return err
}

// Users

func (s *Service) CreateUser(ctx context.Context, subjectID, rawKey string, in User) (User, error) {
	key, err := s.begin(ctx, subjectID, rawKey)
	if err != nil {
		return User{}, err
	}
	if err := validateUser(in); err != nil {
		return User{}, err
	}
	u := s.stampUser(in)
	gate := s.gate(subjectID, key)
	if err := s.store.CreateUser(ctx, u, gate.run); err != nil {
		gate.release(ctx)
		return User{}, err
	}
	audit.LogEvent(ctx, "user_created", map[string]any{"user_id": u.ID})
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, p Page) ([]User, error) {
	return s.store.ListUsers(ctx, normalizePage(p))
}

func (s *Service) UpdateUser(ctx context.Context, subjectID, rawKey, id string, expected int64, upd UserUpdate) (User, error) {
	key, err := s.begin(ctx, subjectID, rawKey)
	if err != nil {
		return User{}, err
	}
	if upd.Empty() {
		return User{}, ErrNoUpdates
	}
	if err := validateUserUpdate(upd); err != nil {
		return User{}, err
	}
	u, err := s.store.UpdateUser(ctx, id, expected, upd)
	if err != nil {
		return User{}, s.noteConflict(err)
	}
	s.mark(ctx, subjectID, key)
	audit.LogEvent(ctx, "user_updated", map[string]any{"user_id": id, "version": u.Version})
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, subjectID, rawKey, id string, expected int64) error {
	key, err := s.begin(ctx, subjectID, rawKey)
	if err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, id, expected); err != nil {
		return s.noteConflict(err)
	}
	s.mark(ctx, subjectID, key)
	audit.LogEvent(ctx, "user_deleted", map[string]any{"user_id": id})
	return nil
}

// Requesters

func (s *Service) CreateRequester(ctx context.Context, subjectID, rawKey string, in Requester) (Requester, error) {
	key, err := s.begin(ctx, subjectID, rawKey)
	if err != nil {
		return Requester{}, err
	}
	if err := validateRequester(in); err != nil {
		return Requester{}, err
	}
	r := s.stampRequester(in)
	gate := s.gate(subjectID, key)
	if err := s.store.CreateRequester(ctx, r, gate.run); err != nil {
		gate.release(ctx)
		return Requester{}, err
	}
	audit.LogEvent(ctx, "requester_created", map[string]any{"requester_id": r.ID})
	return r, nil
}

func (s *Service) GetRequester(ctx context.Context, id string) (Requester, error) {
	return s.store.GetRequester(ctx, id)
}

func (s *Service) ListRequesters(ctx context.Context, p Page) ([]Requester, error) {
	return s.store.ListRequesters(ctx, normalizePage(p))
}

func (s *Service) UpdateRequester(ctx context.Context, subjectID, rawKey, id string, expected int64, upd RequesterUpdate) (Requester, error) {
	key, err := s.begin(ctx, subjectID, rawKey)
	if err != nil {
		return Requester{}, err
	}
	if upd.Empty() {
		return Requester{}, ErrNoUpdates
	}
	if err := validateRequesterUpdate(upd); err != nil {
		return Requester{}, err
	}
	r, err := s.store.UpdateRequester(ctx, id, expected, upd)
	if err != nil {
		return Requester{}, s.noteConflict(err)
	}
	s.mark(ctx, subjectID, key)
	audit.LogEvent(ctx, "requester_updated", map[string]any{"requester_id": id, "version": r.Version})
	return r, nil
}

func (s *Service) DeleteRequester(ctx context.Context, subjectID, rawKey, id string, expected int64) error {
	key, err := s.begin(ctx, subjectID, rawKey)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRequester(ctx, id, expected); err != nil {
		return s.noteConflict(err)
	}
	s.mark(ctx, subjectID, key)
	audit.LogEvent(ctx, "requester_deleted", map[string]any{"requester_id": id})
	return nil
}

// Software

func (s *Service) CreateSoftware(ctx context.Context, subjectID, rawKey string, in Software) (Software, error) {
	key, err := s.begin(ctx, subjectID, rawKey)
	if err != nil {
		return Software{}, err
	}
	if err := validateSoftware(in); err != nil {
		return Software{}, err
	}
	sw := s.stampSoftware(in)
	gate := s.gate(subjectID, key)
	if err := s.store.CreateSoftware(ctx, sw, gate.run); err != nil {
		gate.release(ctx)
		return Software{}, err
	}
	audit.LogEvent(ctx, "software_created", map[string]any{"software_id": sw.ID})
	return sw, nil
}

func (s *Service) GetSoftware(ctx context.Context, id string) (Software, error) {
	return s.store.GetSoftware(ctx, id)
}

func (s *Service) ListSoftware(ctx context.Context, p Page) ([]Software, error) {
	return s.store.ListSoftware(ctx, normalizePage(p))
}

func (s *Service) UpdateSoftware(ctx context.Context, subjectID, rawKey, id string, expected int64, upd SoftwareUpdate) (Software, error) {
	key, err := s.begin(ctx, subjectID, rawKey)
	if err != nil {
		return Software{}, err
	}
	if upd.Empty() {
		return Software{}, ErrNoUpdates
	}
	if err := validateSoftwareUpdate(upd); err != nil {
		return Software{}, err
	}
	sw, err := s.store.UpdateSoftware(ctx, id, expected, upd)
	if err != nil {
		return Software{}, s.noteConflict(err)
	}
	s.mark(ctx, subjectID, key)
	audit.LogEvent(ctx, "software_updated", map[string]any{"software_id": id, "version": sw.Version})
	return sw, nil
}

func (s *Service) DeleteSoftware(ctx context.Context, subjectID, rawKey, id string, expected int64) error {
	key, err := s.begin(ctx, subjectID, rawKey)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSoftware(ctx, id, expected); err != nil {
		return s.noteConflict(err)
	}
	s.mark(ctx, subjectID, key)
	audit.LogEvent(ctx, "software_deleted", map[string]any{"software_id": id})
	return nil
}

// Review requests

func (s *Service) CreateRequest(ctx context.Context, subjectID, rawKey string, in ReviewRequest) (ReviewRequest, error) {
	key, err := s.begin(ctx, subjectID, rawKey)
	if err != nil {
		return ReviewRequest{}, err
	}
	if err := validateRequest(in); err != nil {
		return ReviewRequest{}, err
	}
	r := s.stampRequest(in)
	gate := s.gate(subjectID, key)
	if err := s.store.CreateRequest(ctx, r, gate.run); err != nil {
		gate.release(ctx)
		return ReviewRequest{}, err
	}
	audit.LogEvent(ctx, "review_request_created", map[string]any{"request_id": r.ID, "software_id": r.SoftwareID})
	return r, nil
}

func (s *Service) GetRequest(ctx context.Context, id string) (ReviewRequest, error) {
	return s.store.GetRequest(ctx, id)
}

func (s *Service) ListRequests(ctx context.Context, p Page) ([]ReviewRequest, error) {
	return s.store.ListRequests(ctx, normalizePage(p))
}

func (s *Service) UpdateRequest(ctx context.Context, subjectID, rawKey, id string, expected int64, upd ReviewRequestUpdate) (ReviewRequest, error) {
	key, err := s.begin(ctx, subjectID, rawKey)
	if err != nil {
		return ReviewRequest{}, err
	}
	if upd.Empty() {
		return ReviewRequest{}, ErrNoUpdates
	}
	if err := validateRequestUpdate(upd); err != nil {
		return ReviewRequest{}, err
	}
	r, err := s.store.UpdateRequest(ctx, id, expected, upd)
	if err != nil {
		return ReviewRequest{}, s.noteConflict(err)
	}
	s.mark(ctx, subjectID, key)
	audit.LogEvent(ctx, "review_request_updated", map[string]any{"request_id": id, "version": r.Version})
	return r, nil
}

func (s *Service) DeleteRequest(ctx context.Context, subjectID, rawKey, id string, expected int64) error {
	key, err := s.begin(ctx, subjectID, rawKey)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRequest(ctx, id, expected); err != nil {
		return s.noteConflict(err)
	}
	s.mark(ctx, subjectID, key)
	audit.LogEvent(ctx, "review_request_deleted", map[string]any{"request_id": id})
	return nil
}

// Reviews

func (s *Service) CreateReview(ctx context.Context, subjectID, rawKey string, in Review) (Review, error) {
	key, err := s.begin(ctx, subjectID, rawKey)
	if err != nil {
		return Review{}, err
	}
	if err := validateReview(in); err != nil {
		return Review{}, err
	}
	r := s.stampReview(in)
	gate := s.gate(subjectID, key)
	if err := s.store.CreateReview(ctx, r, gate.run); err != nil {
		gate.release(ctx)
		return Review{}, err
	}
	audit.LogEvent(ctx, "review_created", map[string]any{"review_id": r.ID, "request_id": r.RequestID})
	return r, nil
}

func (s *Service) GetReview(ctx context.Context, id string) (Review, error) {
	return s.store.GetReview(ctx, id)
}

func (s *Service) ListReviews(ctx context.Context, p Page) ([]Review, error) {
	return s.store.ListReviews(ctx, normalizePage(p))
}

func (s *Service) UpdateReview(ctx context.Context, subjectID, rawKey, id string, expected int64, upd ReviewUpdate) (Review, error) {
	key, err := s.begin(ctx, subjectID, rawKey)
	if err != nil {
		return Review{}, err
	}
	if upd.Empty() {
		return Review{}, ErrNoUpdates
	}
	if err := validateReviewUpdate(upd); err != nil {
		return Review{}, err
	}
	r, err := s.store.UpdateReview(ctx, id, expected, upd)
	if err != nil {
		return Review{}, s.noteConflict(err)
	}
	s.mark(ctx, subjectID, key)
	audit.LogEvent(ctx, "review_updated", map[string]any{"review_id": id, "version": r.Version})
	return r, nil
}

func (s *Service) DeleteReview(ctx context.Context, subjectID, rawKey, id string, expected int64) error {
	key, err := s.begin(ctx, subjectID, rawKey)
	if err != nil {
		return err
	}
	if err := s.store.DeleteReview(ctx, id, expected); err != nil {
		return s.noteConflict(err)
	}
	s.mark(ctx, subjectID, key)
	audit.LogEvent(ctx, "review_deleted", map[string]any{"review_id": id})
	return nil
}

// stamping helpers assign server-controlled fields.

func (s *Service) stampUser(in User) User {
	now := s.now().UTC()
	in.ID = s.newID()
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Version = 1
	in.CreatedAt = now
	in.UpdatedAt = now
	return in
}

func (s *Service) stampRequester(in Requester) Requester {
	now := s.now().UTC()
	in.ID = s.newID()
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Version = 1
	in.CreatedAt = now
	in.UpdatedAt = now
	return in
}

func (s *Service) stampSoftware(in Software) Software {
	now := s.now().UTC()
	in.ID = s.newID()
	in.Version = 1
	in.CreatedAt = now
	in.UpdatedAt = now
	return in
}

func (s *Service) stampRequest(in ReviewRequest) ReviewRequest {
	now := s.now().UTC()
	in.ID = s.newID()
	if in.Status == "" {
		in.Status = RequestPending
	}
	in.Version = 1
	in.CreatedAt = now
	in.UpdatedAt = now
	return in
}

func (s *Service) stampReview(in Review) Review {
	now := s.now().UTC()
	in.ID = s.newID()
	in.Version = 1
	in.CreatedAt = now
	in.UpdatedAt = now
	return in
}

func normalizePage(p Page) Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	return p
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, name)
	}
	return nil
}
