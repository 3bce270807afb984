package claim

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/expense-claims/internal"
	claimDatamodel "github.com/frahmantamala/expense-claims/internal/core/datamodel/claim"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// ParseStatus accepts any casing of a known status.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, true
	}
	return "", false
}

var (
	ErrClaimNotFound     = internal.ErrClaimNotFound
	ErrInvalidTransition = internal.ErrInvalidTransition
	ErrForbidden         = internal.ErrForbidden
	ErrReasonRequired    = internal.ErrReasonRequired

	errInvalidStatusFilter = internal.NewValidationFieldError("status", "status must be one of PENDING, APPROVED, REJECTED", internal.ErrCodeValidationFailed)
)

// Claim is an expense claim. ReasonForRejection is set only on REJECTED
// claims; ManagerID and ReviewedAt only once a claim left PENDING.
type Claim struct {
	ID                 int64
	Date               *time.Time
	Category           string
	Amount             decimal.Decimal
	Status             Status
	ReasonForRejection *string
	ReceiptURL         *string
	StaffID            *int64
	ManagerID          *int64
	ReviewedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func NewClaim(staffID int64, date *time.Time, category string, amount decimal.Decimal) *Claim {
	return &Claim{
		Date:     date,
		Category: category,
		Amount:   amount,
		Status:   StatusPending,
		StaffID:  &staffID,
	}
}

// NewReceiptClaim is a claim that so far only carries an uploaded receipt.
func NewReceiptClaim(staffID int64, receiptURL string) *Claim {
	return &Claim{
		Amount:     decimal.Zero,
		Status:     StatusPending,
		ReceiptURL: &receiptURL,
		StaffID:    &staffID,
	}
}

func (c *Claim) IsPending() bool {
	return c.Status == StatusPending
}

func (c *Claim) OwnedBy(userID int64) bool {
	return c.StaffID != nil && *c.StaffID == userID
}

func (c *Claim) Approve(reviewerID int64, now time.Time) error {
	if !c.IsPending() {
		return ErrInvalidTransition
	}
	c.Status = StatusApproved
	c.ReasonForRejection = nil
	c.review(reviewerID, now)
	return nil
}

func (c *Claim) Reject(reviewerID int64, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	if !c.IsPending() {
		return ErrInvalidTransition
	}
	c.Status = StatusRejected
	c.ReasonForRejection = &reason
	c.review(reviewerID, now)
	return nil
}

func (c *Claim) review(reviewerID int64, now time.Time) {
	c.ManagerID = &reviewerID
	c.ReviewedAt = &now
	c.UpdatedAt = now
}

func ToDataModel(c *Claim) *claimDatamodel.ExpenseClaim {
	return &claimDatamodel.ExpenseClaim{
		ID:                 c.ID,
		Date:               c.Date,
		Category:           c.Category,
		Amount:             c.Amount,
		Status:             string(c.Status),
		ReasonForRejection: c.ReasonForRejection,
		ReceiptURL:         c.ReceiptURL,
		StaffID:            c.StaffID,
		ManagerID:          c.ManagerID,
		ReviewedAt:         c.ReviewedAt,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

func FromDataModel(c *claimDatamodel.ExpenseClaim) *Claim {
	return &Claim{
		ID:                 c.ID,
		Date:               c.Date,
		Category:           c.Category,
		Amount:             c.Amount,
		Status:             Status(c.Status),
		ReasonForRejection: c.ReasonForRejection,
		ReceiptURL:         c.ReceiptURL,
		StaffID:            c.StaffID,
		ManagerID:          c.ManagerID,
		ReviewedAt:         c.ReviewedAt,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

// StatusSummary is one row of the per-status aggregate.
type StatusSummary struct {
	Status string          `db:"status"`
	Count  int64           `db:"count"`
	Total  decimal.Decimal `db:"total"`
}
