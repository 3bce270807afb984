package claim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	claimDatamodel "github.com/frahmantamala/expense-claims/internal/core/datamodel/claim"
	"github.com/frahmantamala/expense-claims/internal/core/events"
	coreuser "github.com/frahmantamala/expense-claims/internal/core/user"
)

// Repository is the claim store.
type Repository interface {
	Create(ctx context.Context, c *claimDatamodel.ExpenseClaim) error
	GetByID(ctx context.Context, id int64) (*claimDatamodel.ExpenseClaim, error)
	GetAll(ctx context.Context) ([]*claimDatamodel.ExpenseClaim, error)
	GetByStatus(ctx context.Context, status string) ([]*claimDatamodel.ExpenseClaim, error)
	GetByStaffID(ctx context.Context, staffID int64) ([]*claimDatamodel.ExpenseClaim, error)
	// UpdateStatus writes the review fields of c only if the stored claim is
	// still PENDING and reports whether it did.
	UpdateStatus(ctx context.Context, c *claimDatamodel.ExpenseClaim) (bool, error)
	// UpdateReceipt sets the receipt of a PENDING claim owned by staffID.
	UpdateReceipt(ctx context.Context, id, staffID int64, receiptURL string) (bool, error)
}

type SummaryReader interface {
	Summary(ctx context.Context) ([]StatusSummary, error)
}

// Archiver stores uploaded receipts and returns their relative path.
type Archiver interface {
	Store(ctx context.Context, r io.Reader, originalName string) (string, error)
}

// Service handles the claim lifecycle
type Service struct {
	repo      Repository
	summaries SummaryReader
	archiver  Archiver
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, summaries SummaryReader, archiver Archiver, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		summaries: summaries,
		archiver:  archiver,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the clock used for review timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Submit persists a new PENDING claim for the calling staff member.
func (s *Service) Submit(ctx context.Context, p *coreuser.Principal, dto SubmitClaimDTO) (*Claim, error) {
	if !p.CanSubmitClaims() {
		s.denied(ctx, p, "submit", 0)
		return nil, ErrForbidden
	}

	date, err := dto.Validate()
	if err != nil {
		s.logger.WarnContext(ctx, "claim validation failed", "error", err, "user_id", p.UserID)
		return nil, err
	}

	c := NewClaim(p.UserID, date, strings.TrimSpace(dto.Category), dto.Amount)
	if err := s.create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "claim submitted",
		"claim_id", c.ID,
		"user_id", p.UserID,
		"amount", c.Amount.StringFixed(2),
		"category", c.Category)
	s.publish(ctx, events.EventTypeClaimSubmitted, c, p.UserID)
	return c, nil
}

func (s *Service) Approve(ctx context.Context, p *coreuser.Principal, id int64) error {
	if !p.CanReviewClaims() {
		s.denied(ctx, p, "approve", id)
		return ErrForbidden
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := c.Approve(p.UserID, s.now()); err != nil {
		s.logger.WarnContext(ctx, "approve refused", "claim_id", id, "status", c.Status, "reviewer_id", p.UserID)
		return err
	}
	if err := s.applyReview(ctx, c); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "claim approved", "claim_id", id, "reviewer_id", p.UserID)
	s.publish(ctx, events.EventTypeClaimApproved, c, p.UserID)
	return nil
}

func (s *Service) Reject(ctx context.Context, p *coreuser.Principal, id int64, reason string) error {
	if !p.CanReviewClaims() {
		s.denied(ctx, p, "reject", id)
		return ErrForbidden
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := c.Reject(p.UserID, reason, s.now()); err != nil {
		s.logger.WarnContext(ctx, "reject refused", "claim_id", id, "status", c.Status, "reviewer_id", p.UserID, "error", err)
		return err
	}
	if err := s.applyReview(ctx, c); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "claim rejected", "claim_id", id, "reviewer_id", p.UserID, "reason", *c.ReasonForRejection)
	s.publish(ctx, events.EventTypeClaimRejected, c, p.UserID)
	return nil
}

// CreateWithReceipt stores the upload and opens a new PENDING claim that
// carries only the receipt. Nothing is written when storage fails.
func (s *Service) CreateWithReceipt(ctx context.Context, p *coreuser.Principal, file io.Reader, filename string) (*Claim, error) {
	if !p.CanSubmitClaims() {
		s.denied(ctx, p, "upload", 0)
		return nil, ErrForbidden
	}

	path, err := s.archiver.Store(ctx, file, filename)
	if err != nil {
		return nil, err
	}

	c := NewReceiptClaim(p.UserID, path)
	if err := s.create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "claim created from receipt", "claim_id", c.ID, "user_id", p.UserID, "receipt_url", path)
	s.publish(ctx, events.EventTypeClaimSubmitted, c, p.UserID)
	return c, nil
}

// AttachReceipt stores the upload and links it to an existing PENDING claim
// owned by the caller.
func (s *Service) AttachReceipt(ctx context.Context, p *coreuser.Principal, id int64, file io.Reader, filename string) (*Claim, error) {
	if p == nil {
		return nil, ErrForbidden
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.OwnedBy(p.UserID) {
		s.denied(ctx, p, "attach receipt", id)
		return nil, ErrForbidden
	}
	if !c.IsPending() {
		return nil, ErrInvalidTransition
	}

	path, err := s.archiver.Store(ctx, file, filename)
	if err != nil {
		return nil, err
	}

	applied, err := s.repo.UpdateReceipt(ctx, id, p.UserID, path)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to attach receipt", "error", err, "claim_id", id)
		return nil, fmt.Errorf("failed to attach receipt: %w", err)
	}
	if !applied {
		s.logger.WarnContext(ctx, "claim reviewed while receipt was uploading", "claim_id", id, "orphan_path", path)
		return nil, ErrInvalidTransition
	}

	c.ReceiptURL = &path
	s.logger.InfoContext(ctx, "receipt attached", "claim_id", id, "user_id", p.UserID, "receipt_url", path)
	return c, nil
}

// GetByID returns a claim to its owner or to a reviewer.
func (s *Service) GetByID(ctx context.Context, p *coreuser.Principal, id int64) (*Claim, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanReviewClaims() && (p == nil || !c.OwnedBy(p.UserID)) {
		s.denied(ctx, p, "read", id)
		return nil, ErrForbidden
	}
	return c, nil
}

// List returns every claim to reviewers, optionally filtered by status, and
// the caller's own claims to everybody else.
func (s *Service) List(ctx context.Context, p *coreuser.Principal, status string) ([]*Claim, error) {
	if p == nil {
		return nil, ErrForbidden
	}

	var filter Status
	if status != "" {
		st, ok := ParseStatus(status)
		if !ok {
			return nil, errInvalidStatusFilter
		}
		filter = st
	}

	var (
		rows []*claimDatamodel.ExpenseClaim
		err  error
	)
	switch {
	case p.CanReviewClaims() && filter != "":
		rows, err = s.repo.GetByStatus(ctx, string(filter))
	case p.CanReviewClaims():
		rows, err = s.repo.GetAll(ctx)
	default:
		rows, err = s.repo.GetByStaffID(ctx, p.UserID)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list claims", "error", err, "user_id", p.UserID)
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}

	claims := make([]*Claim, 0, len(rows))
	for _, row := range rows {
		c := FromDataModel(row)
		if filter != "" && c.Status != filter {
			continue
		}
		claims = append(claims, c)
	}
	return claims, nil
}

func (s *Service) Summary(ctx context.Context, p *coreuser.Principal) ([]StatusSummary, error) {
	if !p.CanReviewClaims() {
		s.denied(ctx, p, "summary", 0)
		return nil, ErrForbidden
	}
	rows, err := s.summaries.Summary(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to summarise claims", "error", err)
		return nil, fmt.Errorf("failed to summarise claims: %w", err)
	}
	return rows, nil
}

func (s *Service) load(ctx context.Context, id int64) (*Claim, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrClaimNotFound) {
			return nil, ErrClaimNotFound
		}
		s.logger.ErrorContext(ctx, "failed to load claim", "error", err, "claim_id", id)
		return nil, fmt.Errorf("failed to load claim %d: %w", id, err)
	}
	return FromDataModel(row), nil
}

func (s *Service) create(ctx context.Context, c *Claim) error {
	row := ToDataModel(c)
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.ErrorContext(ctx, "failed to create claim", "error", err)
		return fmt.Errorf("failed to create claim: %w", err)
	}
	c.ID = row.ID
	c.CreatedAt = row.CreatedAt
	c.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *Service) applyReview(ctx context.Context, c *Claim) error {
	applied, err := s.repo.UpdateStatus(ctx, ToDataModel(c))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to update claim status", "error", err, "claim_id", c.ID)
		return fmt.Errorf("failed to update claim %d: %w", c.ID, err)
	}
	if !applied {
		// another reviewer got there first
		return ErrInvalidTransition
	}
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, c *Claim, actorID int64) {
	if s.publisher == nil {
		return
	}
	reason := ""
	if c.ReasonForRejection != nil {
		reason = *c.ReasonForRejection
	}
	evt := events.NewClaimEvent(eventType, c.ID, actorID, string(c.Status), reason)
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish claim event", "error", err, "event_type", eventType, "claim_id", c.ID)
	}
}

func (s *Service) denied(ctx context.Context, p *coreuser.Principal, action string, claimID int64) {
	var userID int64
	var role coreuser.Role
	if p != nil {
		userID, role = p.UserID, p.Role
	}
	s.logger.WarnContext(ctx, "claim action denied", "action", action, "claim_id", claimID, "user_id", userID, "role", role)
}
