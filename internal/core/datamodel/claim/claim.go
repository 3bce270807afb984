package claim

import (
	"time"

	"github.com/shopspring/decimal"
)

type ExpenseClaim struct {
	ID                 int64           `gorm:"primaryKey"`
	Date               *time.Time      `gorm:"column:date;type:date"`
	Category           string          `gorm:"column:category"`
	Amount             decimal.Decimal `gorm:"column:amount;type:decimal(12,2);not null"`
	Status             string          `gorm:"column:status;not null;index"`
	ReasonForRejection *string         `gorm:"column:reason_for_rejection"`
	ReceiptURL         *string         `gorm:"column:receipt_url"`
	StaffID            *int64          `gorm:"column:staff_id;index"`
	ManagerID          *int64          `gorm:"column:manager_id"`
	ReviewedAt         *time.Time      `gorm:"column:reviewed_at"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (ExpenseClaim) TableName() string {
	return "expense_claims"
}
