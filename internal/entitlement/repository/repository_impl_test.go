package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	entitlementdomain "github.com/shi0417/kongfuworld-champion/internal/entitlement/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupEntitlementDB(t *testing.T) (*gorm.DB, *snowflake.Node) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entitlementdomain.Entitlement{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return db, node
}

func seedEntitlement(t *testing.T, db *gorm.DB, node *snowflake.Node, readerID, novelID snowflake.ID, windowEnd time.Time, active bool) *entitlementdomain.Entitlement {
	t.Helper()
	now := time.Now().UTC()
	ent := &entitlementdomain.Entitlement{
		ID:             node.Generate(),
		ReaderID:       readerID,
		NovelID:        novelID,
		TierLevel:      2,
		TierName:       "Silver",
		BasePriceMinor: 900,
		Currency:       "USD",
		WindowStart:    now.Add(-24 * time.Hour),
		WindowEnd:      windowEnd,
		PaymentMethod:  entitlementdomain.PaymentMethodStripe,
		IsActive:       active,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, Provide().Insert(context.Background(), db, ent))
	return ent
}

func TestFindForUpdateLocksRow(t *testing.T) {
	db, _ := setupEntitlementDB(t)

	// sqlite cannot parse FOR UPDATE, so build the statement without
	// executing it and assert on the generated SQL.
	var captured string
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("capture_sql", func(tx *gorm.DB) {
		captured = tx.Statement.SQL.String()
	}))
	session := db.Session(&gorm.Session{DryRun: true})

	_, err := Provide().FindForUpdate(context.Background(), session, 42, 7)
	require.NoError(t, err)

	require.Contains(t, captured, "FROM champion_entitlements")
	require.Contains(t, captured, "reader_id = ? AND novel_id = ?")
	require.Contains(t, captured, "FOR UPDATE")
}

func TestFindActiveAt(t *testing.T) {
	db, node := setupEntitlementDB(t)
	repo := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	seedEntitlement(t, db, node, 42, 7, now.Add(time.Hour), true)
	seedEntitlement(t, db, node, 43, 7, now.Add(-time.Hour), true)
	seedEntitlement(t, db, node, 44, 7, now.Add(time.Hour), false)

	ent, err := repo.FindActiveAt(ctx, db, 42, 7, now)
	require.NoError(t, err)
	require.NotNil(t, ent)

	expired, err := repo.FindActiveAt(ctx, db, 43, 7, now)
	require.NoError(t, err)
	require.Nil(t, expired)

	inactive, err := repo.FindActiveAt(ctx, db, 44, 7, now)
	require.NoError(t, err)
	require.Nil(t, inactive)
}

func TestFindBySubscriptionRef(t *testing.T) {
	db, node := setupEntitlementDB(t)
	repo := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	ent := seedEntitlement(t, db, node, 42, 7, now.Add(time.Hour), true)
	ref := "sub_55"
	ent.ExternalSubscriptionRef = &ref
	ok, err := repo.Update(ctx, db, ent)
	require.NoError(t, err)
	require.True(t, ok)

	found, err := repo.FindBySubscriptionRef(ctx, db, "sub_55")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, ent.ID, found.ID)

	missing, err := repo.FindBySubscriptionRef(ctx, db, "sub_unknown")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestUpdateIsVersionGuarded(t *testing.T) {
	db, node := setupEntitlementDB(t)
	repo := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	ent := seedEntitlement(t, db, node, 42, 7, now.Add(time.Hour), true)
	require.Equal(t, int64(0), ent.Version)

	ent.TierLevel = 3
	ok, err := repo.Update(ctx, db, ent)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), ent.Version)

	// A writer holding the old version loses.
	stale := *ent
	stale.Version = 0
	ok, err = repo.Update(ctx, db, &stale)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDisableAutoRenew(t *testing.T) {
	db, node := setupEntitlementDB(t)
	repo := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	ent := seedEntitlement(t, db, node, 42, 7, now.Add(time.Hour), true)
	ent.AutoRenew = true
	ok, err := repo.Update(ctx, db, ent)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.DisableAutoRenew(ctx, db, ent.ID, now))

	found, err := repo.FindActiveAt(ctx, db, 42, 7, now)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.False(t, found.AutoRenew)
	require.True(t, found.IsActive)
}

func TestDeactivateExpired(t *testing.T) {
	db, node := setupEntitlementDB(t)
	repo := Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	seedEntitlement(t, db, node, 42, 7, now.Add(-time.Hour), true)
	seedEntitlement(t, db, node, 43, 7, now.Add(-time.Minute), true)
	live := seedEntitlement(t, db, node, 44, 7, now.Add(time.Hour), true)

	count, err := repo.DeactivateExpired(ctx, db, now)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	still, err := repo.FindActiveAt(ctx, db, live.ReaderID, 7, now)
	require.NoError(t, err)
	require.NotNil(t, still)

	// Idempotent on re-run.
	count, err = repo.DeactivateExpired(ctx, db, now)
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
}
