//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/infrastructure/postgres"
	"github.com/bibbank/loginrisk/pkg/testutil"
)

const migrationsDir = "../../../migrations"

func TestRepositories(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t, migrationsDir)

	t.Run("guard state round trip", func(t *testing.T) {
		pc.Truncate(ctx, t, "guard_state")
		repo := postgres.NewGuardStateRepository(pc.Pool, "rollout")

		_, found, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.False(t, found)

		snap := model.GuardSnapshot{
			State:          "rolled_back",
			RolledBack:     true,
			RollbackReason: "v2_weaker 6.00% > 5.00%",
			LastUpdated:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Metrics:        model.DisagreementMetrics{TotalComparisons: 150, V2WeakerPercentage: 6, Classification: model.ComparisonV2Weaker},
			Rollout:        model.RolloutConfig{AutoRollback: model.DefaultAutoRollbackPolicy()},
		}
		require.NoError(t, repo.Save(ctx, snap))

		got, found, err := repo.Load(ctx)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, snap.State, got.State)
		assert.True(t, got.RolledBack)
		assert.Equal(t, snap.Metrics, got.Metrics)
		assert.Equal(t, snap.Rollout.AutoRollback, got.Rollout.AutoRollback)
		assert.True(t, snap.LastUpdated.Equal(got.LastUpdated))

		snap.State = "active"
		snap.RolledBack = false
		snap.Rollout.V2Percentage = 10
		require.NoError(t, repo.Save(ctx, snap))

		got, _, err = repo.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "active", got.State)
		assert.Equal(t, 10, got.Rollout.V2Percentage)
	})

	t.Run("audit append and list", func(t *testing.T) {
		pc.Truncate(ctx, t, "audit_log")
		repo := postgres.NewAuditRepository(pc.Pool)

		older := model.NewAuditEntry(model.AuditKindProviderError, "risk_assessment", errors.New("timeout"), map[string]string{"handling": "dropped"})
		older.OccurredAt = older.OccurredAt.Add(-time.Minute).Truncate(time.Microsecond)
		newer := model.NewAuditEntry(model.AuditKindShadowDisagree, "risk_assessment", nil, nil)
		newer.OccurredAt = newer.OccurredAt.Truncate(time.Microsecond)

		require.NoError(t, repo.Append(ctx, older, newer))
		require.NoError(t, repo.Append(ctx, older), "duplicate IDs are ignored")

		all, err := repo.ListRecent(ctx, "", 10)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, newer.ID, all[0].ID)
		assert.Equal(t, older.ID, all[1].ID)
		assert.Equal(t, "timeout", all[1].Error)
		assert.Equal(t, map[string]string{"handling": "dropped"}, all[1].Fields)
		assert.Nil(t, all[0].Fields)

		onlyProvider, err := repo.ListRecent(ctx, model.AuditKindProviderError, 10)
		require.NoError(t, err)
		require.Len(t, onlyProvider, 1)
		assert.Equal(t, older.ID, onlyProvider[0].ID)
	})
}
