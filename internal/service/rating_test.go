package service

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRatingFixture() (*RatingService, *memRatingStore, *CollaborativeService) {
	store := newMemRatingStore()
	collab := NewCollaborativeService(10, 20)
	return NewRatingService(store, collab), store, collab
}

func TestUpsertValidation(t *testing.T) {
	svc, store, _ := newRatingFixture()

	cases := []struct {
		name            string
		userID, movieID int
		rating          float64
	}{
		{"用户ID为零", 0, 1, 5},
		{"用户ID为负", -1, 1, 5},
		{"电影ID为零", 1, 0, 5},
		{"评分为负", 1, 1, -0.5},
		{"评分超上限", 1, 1, 10.5},
		{"评分为NaN", 1, 1, math.NaN()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Upsert(context.Background(), tc.userID, tc.movieID, tc.rating)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
	// 非法请求不应碰存储
	assert.Empty(t, store.ratings)
}

func TestUpsertOverwrite(t *testing.T) {
	svc, store, collab := newRatingFixture()

	// 同一 (user, movie) 两次写入，后写生效
	require.NoError(t, svc.Upsert(context.Background(), 7, 550, 9.0))
	require.NoError(t, svc.Upsert(context.Background(), 7, 550, 4.5))

	assert.Equal(t, 4.5, store.ratings[[2]int{7, 550}])
	r, ok := collab.Matrix().Get(7, 550)
	require.True(t, ok)
	assert.Equal(t, 4.5, r)
}

func TestUpsertRounding(t *testing.T) {
	svc, store, _ := newRatingFixture()

	require.NoError(t, svc.Upsert(context.Background(), 1, 2, 7.4499))
	assert.Equal(t, 7.4, store.ratings[[2]int{1, 2}])

	require.NoError(t, svc.Upsert(context.Background(), 1, 3, 10.0))
	assert.Equal(t, 10.0, store.ratings[[2]int{1, 3}])
}

func TestUpsertStoreFailureLeavesMatrixUntouched(t *testing.T) {
	svc, store, collab := newRatingFixture()
	store.failing = true

	err := svc.Upsert(context.Background(), 1, 1, 8)
	require.Error(t, err)

	_, ok := collab.Matrix().Get(1, 1)
	assert.False(t, ok)
	assert.Equal(t, int64(0), collab.StaleCount())
}

func TestUpsertMarksIndexStale(t *testing.T) {
	svc, _, collab := newRatingFixture()

	require.NoError(t, svc.Upsert(context.Background(), 1, 1, 8))
	require.NoError(t, svc.Upsert(context.Background(), 1, 2, 6))
	assert.Equal(t, int64(2), collab.StaleCount())
}
