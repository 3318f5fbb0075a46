// Package markets resolves which markets a caller may report on.
package markets

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/marketreports-backend/pkg/auth"
	"github.com/angelmondragon/marketreports-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketreports-backend/pkg/errors"
)

// Caller identifies who is asking for a report.
type Caller struct {
	UserID int64
	Role   auth.Role
}

// Resolver maps a caller onto the market ids they may see.
type Resolver interface {
	AccessibleMarketIDs(ctx context.Context, caller Caller) ([]int64, error)
}

// Repository resolves market access from markets and market_user.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to market lookups.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AccessibleMarketIDs returns ascending market ids. Admins see every
// non-deleted market; market users see the non-deleted markets granted to them.
func (r *Repository) AccessibleMarketIDs(ctx context.Context, caller Caller) ([]int64, error) {
	if !caller.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "unknown role")
	}

	q := r.db.WithContext(ctx).Model(&models.Market{})
	if caller.Role != auth.RoleAdmin {
		q = q.Joins("JOIN market_user ON market_user.market_id = markets.id").
			Where("market_user.user_id = ?", caller.UserID)
	}

	ids := []int64{}
	if err := q.Order("markets.id ASC").Distinct().Pluck("markets.id", &ids).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("accessible markets: %w", err), "market lookup failed")
	}
	return ids, nil
}
