package repository

import (
	"context"
	"time"

	"github.com/vibelog/backend/internal/domain"
	"gorm.io/gorm"
)

// CostRepository is the append-only ledger of paid calls.
type CostRepository struct {
	db *gorm.DB
}

func NewCostRepository(db *gorm.DB) *CostRepository {
	return &CostRepository{db: db}
}

// ServiceTotal is one line of the per-service breakdown.
type ServiceTotal struct {
	Service string  `json:"service"`
	CostUSD float64 `json:"cost_usd"`
	Calls   int64   `json:"calls"`
}

func (r *CostRepository) Append(ctx context.Context, e *domain.CostEntry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// TotalSince sums ledger costs recorded at or after since.
func (r *CostRepository) TotalSince(ctx context.Context, since time.Time) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).Model(&domain.CostEntry{}).
		Select("COALESCE(SUM(cost_usd), 0)").
		Where("created_at >= ?", since).
		Scan(&total).Error
	return total, err
}

// BreakdownSince groups ledger costs by service.
func (r *CostRepository) BreakdownSince(ctx context.Context, since time.Time) ([]ServiceTotal, error) {
	var out []ServiceTotal
	err := r.db.WithContext(ctx).Model(&domain.CostEntry{}).
		Select("service, COALESCE(SUM(cost_usd), 0) AS cost_usd, COUNT(*) AS calls").
		Where("created_at >= ?", since).
		Group("service").
		Order("service").
		Scan(&out).Error
	return out, err
}
