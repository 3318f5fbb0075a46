// Package settings reads system-wide report settings.
package settings

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/marketreports-backend/internal/reports"
	"github.com/angelmondragon/marketreports-backend/pkg/db/models"
	"github.com/angelmondragon/marketreports-backend/pkg/logger"
)

// FunnelStepKeyPrefix prefixes the per-step funnel settings; the suffix is the
// step number and the value is the event id.
const FunnelStepKeyPrefix = "conversion_funnel_step_"

// Repository resolves funnel steps from the settings table.
type Repository struct {
	db       *gorm.DB
	fallback []int64
	logg     *logger.Logger
}

// NewRepository binds the settings table. fallback event ids are used when no
// funnel step setting exists.
func NewRepository(db *gorm.DB, fallback []int64, logg *logger.Logger) *Repository {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Repository{db: db, fallback: slices.Clone(fallback), logg: logg}
}

// FunnelSteps returns the configured steps ordered by step number. Malformed
// rows are skipped.
func (r *Repository) FunnelSteps(ctx context.Context) ([]reports.FunnelStep, error) {
	var rows []models.Setting
	err := r.db.WithContext(ctx).
		Where("key LIKE ?", FunnelStepKeyPrefix+"%").
		Where("owner_type IS NULL AND owner_id IS NULL").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading funnel step settings: %w", err)
	}

	steps := make([]reports.FunnelStep, 0, len(rows))
	seen := make(map[int]bool, len(rows))
	for _, row := range rows {
		step, ok := parseStep(row)
		if !ok || seen[step.Number] {
			r.logg.Warn(r.logg.WithFields(ctx, map[string]any{"key": row.Key, "value": row.Value}), "skipping funnel step setting")
			continue
		}
		seen[step.Number] = true
		steps = append(steps, step)
	}

	if len(steps) == 0 {
		return reports.StepsFromEventIDs(r.fallback), nil
	}
	slices.SortFunc(steps, func(a, b reports.FunnelStep) int { return a.Number - b.Number })
	return steps, nil
}

func parseStep(row models.Setting) (reports.FunnelStep, bool) {
	suffix, ok := strings.CutPrefix(row.Key, FunnelStepKeyPrefix)
	if !ok {
		return reports.FunnelStep{}, false
	}
	number, err := strconv.Atoi(suffix)
	if err != nil || number < 1 {
		return reports.FunnelStep{}, false
	}
	eventID, err := strconv.ParseInt(strings.TrimSpace(row.Value), 10, 64)
	if err != nil || eventID <= 0 {
		return reports.FunnelStep{}, false
	}
	return reports.FunnelStep{Number: number, EventID: eventID}, true
}
