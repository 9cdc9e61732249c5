package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	chapterdomain "github.com/shi0417/kongfuworld-champion/internal/chapter/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupChapterDB(t *testing.T) (*gorm.DB, *snowflake.Node) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&chapterdomain.Chapter{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return db, node
}

func seedChapter(t *testing.T, db *gorm.DB, node *snowflake.Node, novelID snowflake.ID, number int64, released, advance bool, reviewStatus string) {
	t.Helper()
	now := time.Now().UTC()
	repo := Provide()
	require.NoError(t, repo.Insert(context.Background(), db, &chapterdomain.Chapter{
		ID:            node.Generate(),
		NovelID:       novelID,
		ChapterNumber: number,
		IsReleased:    released,
		IsAdvance:     advance,
		ReviewStatus:  reviewStatus,
		CreatedAt:     now,
		UpdatedAt:     now,
	}))
}

func TestMaxReleasedExcludesAdvanceAndUnapproved(t *testing.T) {
	db, node := setupChapterDB(t)
	repo := Provide()
	ctx := context.Background()

	seedChapter(t, db, node, 7, 1, true, false, chapterdomain.ReviewStatusApproved)
	seedChapter(t, db, node, 7, 2, true, false, chapterdomain.ReviewStatusApproved)
	seedChapter(t, db, node, 7, 3, true, false, chapterdomain.ReviewStatusPending)
	seedChapter(t, db, node, 7, 4, false, false, chapterdomain.ReviewStatusApproved)
	seedChapter(t, db, node, 7, 5, true, true, chapterdomain.ReviewStatusApproved)
	seedChapter(t, db, node, 8, 99, true, false, chapterdomain.ReviewStatusApproved)

	baseMax, err := repo.MaxReleased(ctx, db, 7)
	require.NoError(t, err)
	require.Equal(t, int64(2), baseMax)

	allMax, err := repo.MaxReleasedIncludingAdvance(ctx, db, 7)
	require.NoError(t, err)
	require.Equal(t, int64(5), allMax)
}

func TestMaxReleasedEmptyNovel(t *testing.T) {
	db, _ := setupChapterDB(t)
	repo := Provide()

	baseMax, err := repo.MaxReleased(context.Background(), db, 7)
	require.NoError(t, err)
	require.Equal(t, int64(0), baseMax)

	allMax, err := repo.MaxReleasedIncludingAdvance(context.Background(), db, 7)
	require.NoError(t, err)
	require.Equal(t, int64(0), allMax)
}
