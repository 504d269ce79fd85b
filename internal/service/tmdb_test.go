package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/movierec/internal/model"
	"github.com/user/movierec/internal/utils"
)

// newTMDBTestServer 按路径分发的提供方桩，calls 统计实际收到的请求数
func newTMDBTestServer(calls *atomic.Int64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch {
		case strings.HasPrefix(r.URL.Path, "/genre/movie/list"):
			fmt.Fprint(w, `{"genres":[{"id":18,"name":"Drama"}]}`)
		case strings.HasPrefix(r.URL.Path, "/search/person"):
			fmt.Fprint(w, `{"results":[{"id":7}]}`)
		case strings.HasPrefix(r.URL.Path, "/person/"):
			fmt.Fprint(w, `{"cast":[
				{"id":1,"title":"Early Work","release_date":"1998-01-01","popularity":5,"genre_ids":[18]},
				{"id":2,"title":"Breakthrough","release_date":"2005-01-01","popularity":9,"genre_ids":[18]}
			]}`)
		default:
			fmt.Fprint(w, `{"results":[{"id":9,"title":"Found","release_date":"2010-01-01","popularity":3,"genre_ids":[18]}]}`)
		}
	}))
}

func newTestClient(baseURL string, limiter *RequestLimiter) *TMDBClient {
	cfg := newTestConfig()
	cfg.TMDBBaseURL = baseURL
	return NewTMDBClient(cfg, limiter)
}

func TestSearchByActorChargesTokenPerRequest(t *testing.T) {
	utils.InitCache()
	var calls atomic.Int64
	srv := newTMDBTestServer(&calls)
	defer srv.Close()

	// 刚好够一次两跳演员搜索加一次类型表
	client := newTestClient(srv.URL, NewRequestLimiter(3, time.Hour, 10*time.Millisecond))

	movies, err := client.SearchByActor(context.Background(), "someone", 5)
	require.NoError(t, err)
	require.Len(t, movies, 2)
	// 人气降序
	assert.Equal(t, 2, movies[0].MovieID)
	assert.Equal(t, 1, movies[1].MovieID)
	assert.Equal(t, int64(3), calls.Load())

	// 桶已放空，下一次在第一跳就被限流，提供方一个请求都收不到
	_, err = client.SearchByActor(context.Background(), "someone", 5)
	var throttled *ThrottledError
	require.ErrorAs(t, err, &throttled)
	assert.Equal(t, int64(3), calls.Load())
}

func TestSearchMoviesFilterChargesEachRequest(t *testing.T) {
	utils.InitCache()
	var calls atomic.Int64
	srv := newTMDBTestServer(&calls)
	defer srv.Close()

	client := newTestClient(srv.URL, NewRequestLimiter(2, time.Hour, 10*time.Millisecond))

	movies, err := client.SearchMovies(context.Background(), "", model.SearchFilters{Genre: "Drama"})
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, []string{"Drama"}, movies[0].Genres)
	// 类型表 + discover 各扣一个令牌
	assert.Equal(t, int64(2), calls.Load())

	// 类型表已缓存，但桶里没令牌了
	_, err = client.SearchMovies(context.Background(), "", model.SearchFilters{Genre: "Drama"})
	var throttled *ThrottledError
	require.ErrorAs(t, err, &throttled)
	assert.Equal(t, int64(2), calls.Load())
}

func TestNormalizeListGenreLookupHonorsCallerContext(t *testing.T) {
	utils.InitCache()
	var calls atomic.Int64
	srv := newTMDBTestServer(&calls)
	defer srv.Close()

	client := newTestClient(srv.URL, NewRequestLimiter(10, time.Hour, 10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	movies := client.normalizeList(ctx, []tmdbListMovie{{ID: 9, Title: "Found", GenreIDs: []int{18}}})
	require.Len(t, movies, 1)
	// 调用方已取消，类型表请求不会发出，降级为无类型
	assert.Equal(t, int64(0), calls.Load())
	assert.Empty(t, movies[0].Genres)
}
