package storefront

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyanglife/catshop/internal/catalog"
	"github.com/nyanglife/catshop/internal/coupang"
)

type fetchResult struct {
	products []coupang.Product
	err      error
}

// stubFetcher records keywords and answers from results. When gates has an
// entry for a keyword, the call blocks until that channel is closed.
type stubFetcher struct {
	mu       sync.Mutex
	keywords []string
	results  map[string]fetchResult
	gates    map[string]chan struct{}
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{results: map[string]fetchResult{}, gates: map[string]chan struct{}{}}
}

func (s *stubFetcher) Fetch(ctx context.Context, keyword string) ([]coupang.Product, error) {
	s.mu.Lock()
	s.keywords = append(s.keywords, keyword)
	gate := s.gates[keyword]
	res := s.results[keyword]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res.products, res.err
}

func (s *stubFetcher) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keywords...)
}

func waitDone(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("route did not settle")
	}
}

var twoProducts = []coupang.Product{
	{ProductID: 1, ProductName: "a", ProductPrice: 1000},
	{ProductID: 2, ProductName: "b", ProductPrice: 2000},
}

func TestRouteKnownCategory(t *testing.T) {
	f := newStubFetcher()
	f.results["고양이 사료"] = fetchResult{products: twoProducts}
	v := NewView(f)

	waitDone(t, v.Route(context.Background(), "food"))

	st := v.Snapshot()
	assert.Equal(t, []string{"고양이 사료"}, f.calls())
	assert.Equal(t, StatusSuccess, st.Status)
	assert.Equal(t, catalog.Food, st.Category)
	assert.Equal(t, "사료 추천 상품", st.Title())
	assert.Len(t, st.Products, 2)
}

func TestRouteUnknownSlugMakesNoCall(t *testing.T) {
	f := newStubFetcher()
	v := NewView(f)

	waitDone(t, v.Route(context.Background(), "unknown-xyz"))

	st := v.Snapshot()
	assert.Empty(t, f.calls())
	assert.Equal(t, StatusUnknown, st.Status)
	assert.Equal(t, "알 수 없는 카테고리 추천 상품", st.Title())
}

func TestRouteMissingSlug(t *testing.T) {
	f := newStubFetcher()
	v := NewView(f)

	waitDone(t, v.Route(context.Background(), ""))

	assert.Empty(t, f.calls())
	assert.Equal(t, StatusPending, v.Snapshot().Status)
	assert.Equal(t, "로딩 중... 추천 상품", v.Snapshot().Title())
}

func TestRouteEmptyResult(t *testing.T) {
	f := newStubFetcher()
	v := NewView(f)

	waitDone(t, v.Route(context.Background(), "toy"))

	st := v.Snapshot()
	assert.Equal(t, StatusEmpty, st.Status)
	assert.Empty(t, st.Products)
	assert.Empty(t, st.Message)
}

func TestRouteError(t *testing.T) {
	f := newStubFetcher()
	f.results["고양이 모래"] = fetchResult{err: &FetchError{Status: 500, Message: "Server configuration error"}}
	v := NewView(f)

	waitDone(t, v.Route(context.Background(), "sand"))

	st := v.Snapshot()
	assert.Equal(t, StatusError, st.Status)
	assert.Equal(t, "Server configuration error", st.Message)
	assert.Nil(t, st.Products)
}

func TestRouteSameCategoryDoesNotRefetch(t *testing.T) {
	f := newStubFetcher()
	f.results["고양이 사료"] = fetchResult{products: twoProducts}
	v := NewView(f)

	waitDone(t, v.Route(context.Background(), "food"))
	waitDone(t, v.Route(context.Background(), "food"))

	assert.Len(t, f.calls(), 1)
	assert.Equal(t, StatusSuccess, v.Snapshot().Status)
}

func TestRouteChangeRefetches(t *testing.T) {
	f := newStubFetcher()
	f.results["고양이 사료"] = fetchResult{products: twoProducts}
	v := NewView(f)

	waitDone(t, v.Route(context.Background(), "food"))
	waitDone(t, v.Route(context.Background(), "carrier"))
	waitDone(t, v.Route(context.Background(), "food"))

	assert.Equal(t, []string{"고양이 사료", "고양이 이동장", "고양이 사료"}, f.calls())
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	f := newStubFetcher()
	slow := make(chan struct{})
	f.gates["고양이 사료"] = slow
	f.results["고양이 사료"] = fetchResult{products: twoProducts}
	f.results["고양이 모래"] = fetchResult{products: twoProducts[:1]}
	v := NewView(f)

	first := v.Route(context.Background(), "food")
	second := v.Route(context.Background(), "sand")
	waitDone(t, second)

	close(slow)
	waitDone(t, first)

	st := v.Snapshot()
	assert.Equal(t, catalog.Sand, st.Category)
	assert.Equal(t, StatusSuccess, st.Status)
	require.Len(t, st.Products, 1)
	assert.Equal(t, int64(1), st.Products[0].ProductID)
}

func TestStaleResponseDiscardedAfterUnknownRoute(t *testing.T) {
	f := newStubFetcher()
	slow := make(chan struct{})
	f.gates["고양이 사료"] = slow
	f.results["고양이 사료"] = fetchResult{products: twoProducts}
	v := NewView(f)

	first := v.Route(context.Background(), "food")
	waitDone(t, v.Route(context.Background(), "nope"))
	close(slow)
	waitDone(t, first)

	assert.Equal(t, StatusUnknown, v.Snapshot().Status)
}

func TestRouteLoadingStateIsVisible(t *testing.T) {
	f := newStubFetcher()
	gate := make(chan struct{})
	f.gates["고양이 식기"] = gate
	v := NewView(f)

	done := v.Route(context.Background(), "dishes")
	assert.Equal(t, StatusLoading, v.Snapshot().Status)

	close(gate)
	waitDone(t, done)
	assert.Equal(t, StatusEmpty, v.Snapshot().Status)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "loading", StatusLoading.String())
	assert.Equal(t, "invalid", Status(99).String())
}
