package claim

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/expense-claims/internal"
	"github.com/frahmantamala/expense-claims/internal/core/common/validation"
)

const DateLayout = "2006-01-02"

// SubmitClaimDTO is the body of POST /expenses/submit. A status sent by the
// client is accepted and ignored.
type SubmitClaimDTO struct {
	Date     string          `json:"date"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Status   string          `json:"status,omitempty"`
}

// Validate checks the draft and returns the parsed date, which may be nil.
func (d SubmitClaimDTO) Validate() (*time.Time, error) {
	var date *time.Time
	if s := strings.TrimSpace(d.Date); s != "" {
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return nil, internal.NewValidationFieldError("date", "date must use the YYYY-MM-DD format", internal.ErrCodeInvalidDate)
		}
		date = &t
	}

	v := validation.NewValidator()
	v.Field("category", strings.TrimSpace(d.Category)).Required().MaxLength(100)
	v.Field("amount", d.Amount).
		Positive(internal.ErrCodeInvalidAmount).
		MaxScale(validation.AmountScale, internal.ErrCodeInvalidAmount).
		MaxDecimal(validation.MaxClaimAmount, internal.ErrCodeInvalidAmount)
	v.Field("date", date).NotFuture()
	if appErr := v.Validate(); appErr != nil {
		return nil, appErr
	}
	return date, nil
}

type RejectClaimDTO struct {
	Reason string `json:"reason"`
}

type ClaimResponse struct {
	ID                 int64      `json:"id"`
	Date               *string    `json:"date"`
	Category           string     `json:"category"`
	Amount             string     `json:"amount"`
	Status             string     `json:"status"`
	ReasonForRejection *string    `json:"reason_for_rejection,omitempty"`
	ReceiptURL         *string    `json:"receipt_url,omitempty"`
	StaffID            *int64     `json:"staff_id,omitempty"`
	ManagerID          *int64     `json:"manager_id,omitempty"`
	ReviewedAt         *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (c *Claim) ToResponse() ClaimResponse {
	var date *string
	if c.Date != nil {
		s := c.Date.Format(DateLayout)
		date = &s
	}
	return ClaimResponse{
		ID:                 c.ID,
		Date:               date,
		Category:           c.Category,
		Amount:             c.Amount.StringFixed(2),
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

type ClaimsResponse struct {
	Claims []ClaimResponse `json:"claims"`
	Count  int             `json:"count"`
}

type SubmitResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

type ReceiptResponse struct {
	Message    string `json:"message"`
	ID         int64  `json:"id"`
	ReceiptURL string `json:"receipt_url"`
}

type SummaryResponse struct {
	Statuses []StatusSummaryResponse `json:"statuses"`
}

type StatusSummaryResponse struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
	Total  string `json:"total"`
}
