package settings

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/marketreports-backend/internal/reports"
	"github.com/angelmondragon/marketreports-backend/pkg/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&models.Setting{}))
	return conn
}

func ptr[T any](v T) *T { return &v }

func TestFunnelStepsFromSettings(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&[]models.Setting{
		{ID: 1, Key: "conversion_funnel_step_2", Value: "3", Type: "integer"},
		{ID: 2, Key: "conversion_funnel_step_1", Value: " 2 ", Type: "integer"},
		{ID: 3, Key: "conversion_funnel_step_3", Value: "623", Type: "integer"},
		// market-owned overrides are not system-wide
		{ID: 4, Key: "conversion_funnel_step_4", Value: "8", Type: "integer", OwnerID: ptr(int64(7)), OwnerType: ptr("market")},
		{ID: 5, Key: "site_title", Value: "Reports"},
	}).Error)

	steps, err := NewRepository(db, reports.DefaultFunnelEventIDs, nil).FunnelSteps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []reports.FunnelStep{
		{Number: 1, EventID: 2},
		{Number: 2, EventID: 3},
		{Number: 3, EventID: 623},
	}, steps)
}

func TestFunnelStepsSkipsMalformedRows(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&[]models.Setting{
		{ID: 1, Key: "conversion_funnel_step_1", Value: "2"},
		{ID: 2, Key: "conversion_funnel_step_x", Value: "3"},
		{ID: 3, Key: "conversion_funnel_step_2", Value: "abc"},
		{ID: 4, Key: "conversion_funnel_step_0", Value: "5"},
		{ID: 5, Key: "conversion_funnel_step_3", Value: "7"},
	}).Error)

	steps, err := NewRepository(db, nil, nil).FunnelSteps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []reports.FunnelStep{{Number: 1, EventID: 2}, {Number: 3, EventID: 7}}, steps)
}

func TestFunnelStepsFallsBackToConfig(t *testing.T) {
	db := newTestDB(t)

	steps, err := NewRepository(db, []int64{2, 3, 7}, nil).FunnelSteps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reports.StepsFromEventIDs([]int64{2, 3, 7}), steps)
}

func TestFunnelStepsQueryFailure(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrator().DropTable(&models.Setting{}))

	_, err := NewRepository(db, []int64{2}, nil).FunnelSteps(context.Background())
	require.Error(t, err)
}

var _ reports.StepProvider = (*Repository)(nil)
