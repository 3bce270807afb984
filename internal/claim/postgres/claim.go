package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/expense-claims/internal/claim"
	claimDatamodel "github.com/frahmantamala/expense-claims/internal/core/datamodel/claim"
)

// ClaimRepository implements claim.Repository using GORM
type ClaimRepository struct {
	db *gorm.DB
}

func NewClaimRepository(db *gorm.DB) claim.Repository {
	return &ClaimRepository{db: db}
}

func (r *ClaimRepository) Create(ctx context.Context, c *claimDatamodel.ExpenseClaim) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *ClaimRepository) GetByID(ctx context.Context, id int64) (*claimDatamodel.ExpenseClaim, error) {
	var c claimDatamodel.ExpenseClaim
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, claim.ErrClaimNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ClaimRepository) GetAll(ctx context.Context) ([]*claimDatamodel.ExpenseClaim, error) {
	var claims []*claimDatamodel.ExpenseClaim
	err := r.db.WithContext(ctx).Order("id DESC").Find(&claims).Error
	return claims, err
}

// GetByStatus lists claims in status, oldest first so reviewers work FIFO.
func (r *ClaimRepository) GetByStatus(ctx context.Context, status string) ([]*claimDatamodel.ExpenseClaim, error) {
	var claims []*claimDatamodel.ExpenseClaim
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("id ASC").
		Find(&claims).Error
	return claims, err
}

func (r *ClaimRepository) GetByStaffID(ctx context.Context, staffID int64) ([]*claimDatamodel.ExpenseClaim, error) {
	var claims []*claimDatamodel.ExpenseClaim
	err := r.db.WithContext(ctx).
		Where("staff_id = ?", staffID).
		Order("id DESC").
		Find(&claims).Error
	return claims, err
}

func (r *ClaimRepository) UpdateStatus(ctx context.Context, c *claimDatamodel.ExpenseClaim) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&claimDatamodel.ExpenseClaim{}).
		Where("id = ? AND status = ?", c.ID, string(claim.StatusPending)).
		Updates(map[string]interface{}{
			"status":               c.Status,
			"reason_for_rejection": c.ReasonForRejection,
			"manager_id":           c.ManagerID,
			"reviewed_at":          c.ReviewedAt,
			"updated_at":           time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ClaimRepository) UpdateReceipt(ctx context.Context, id, staffID int64, receiptURL string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&claimDatamodel.ExpenseClaim{}).
		Where("id = ? AND staff_id = ? AND status = ?", id, staffID, string(claim.StatusPending)).
		Updates(map[string]interface{}{
			"receipt_url": receiptURL,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
