package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listings-api/chatlog"
	"listings-api/domain"
)

var chatExport = strings.Join([]string{
	"2025. 3. 4. 오후 2:13, 김중개 : W타워3 A동 1203호",
	"전용 25.3",
	"임대 2000/160",
	"주차 가능",
	"2025. 3. 4. 오전 9:00, 김중개 : W타워3 A동 1203호",
	"임대 2000/170",
	"2025. 3. 4. 오후 3:00, 이실장 : 없는건물 101호",
}, "\n")

func TestMemoImport_LatestMessageWins(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	target := env.addListing(t, "W타워3 A동 1203호", "2000/180", 25)
	other := env.addListing(t, "델타빌딩", "500/50", 10)

	report, err := env.memoService().Import(ctx, "talk.txt", strings.NewReader(chatExport), false)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Messages)
	assert.Equal(t, 2, report.Matched)
	assert.Equal(t, []uint{target.ID}, report.UpdatedListings)
	require.Len(t, report.Matches, 2)
	assert.Equal(t, chatlog.MethodUnit, report.Matches[0].Method)
	require.Len(t, report.Unmatched, 1)
	assert.Equal(t, "이실장", report.Unmatched[0].Author)
	assert.Equal(t, "없는건물 101호", report.Unmatched[0].Excerpt)

	got, err := env.repos.Listings.GetByID(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, "W타워3 A동 1203호\n전용 25.3\n임대 2000/160\n주차 가능", got.Note)
	assert.Equal(t, int64(160), got.Rent)
	assert.Equal(t, 25.3, got.ExclusiveArea)
	assert.True(t, got.Amenities.Parking)
	require.NotNil(t, got.NoteUpdatedAt)
	assert.Equal(t, 14, got.NoteUpdatedAt.UTC().Hour())

	untouched, err := env.repos.Listings.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, untouched.Note)
	assert.Contains(t, env.publisher.actions(), domain.EventMemosMatched)
}

func TestMemoImport_DryRun(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	target := env.addListing(t, "W타워3 A동 1203호", "2000/180", 25)

	report, err := env.memoService().Import(ctx, "talk.txt", strings.NewReader(chatExport), true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Matched)

	got, err := env.repos.Listings.GetByID(ctx, target.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Note)
	assert.Equal(t, int64(180), got.Rent)
	assert.Empty(t, env.publisher.actions())
}

func TestMemoImport_EmptyLog(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.memoService().Import(context.Background(), "talk.txt", strings.NewReader("\n\n"), false)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "a b", excerpt(" a\n b "))
	long := strings.Repeat("가", 100)
	assert.Equal(t, strings.Repeat("가", excerptRunes)+"…", excerpt(long))
}
