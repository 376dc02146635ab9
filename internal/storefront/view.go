package storefront

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/nyanglife/catshop/internal/catalog"
	"github.com/nyanglife/catshop/internal/coupang"
)

// Status is the mutually exclusive phase of a category view.
type Status int

const (
	// StatusPending means no slug has been routed yet.
	StatusPending Status = iota
	// StatusUnknown means the slug matched no category. No search is made.
	StatusUnknown
	StatusLoading
	StatusError
	StatusEmpty
	StatusSuccess
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusUnknown:
		return "unknown"
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	case StatusEmpty:
		return "empty"
	case StatusSuccess:
		return "success"
	default:
		return "invalid"
	}
}

// State is an immutable snapshot of a View.
type State struct {
	Slug     string
	Category catalog.Category
	Status   Status
	Message  string
	Products []coupang.Product
}

// Title is the page heading, e.g. "사료 추천 상품".
func (s State) Title() string {
	name := catalog.LoadingLabel
	if s.Status != StatusPending {
		name = s.Category.Name()
	}
	return name + " 추천 상품"
}

// View tracks the category being shown and the result of its search. Every
// fetch carries the sequence number it was issued with; a result is applied
// only if no later Route has happened since, so the last route always wins.
type View struct {
	fetcher Fetcher
	logger  *slog.Logger

	mu    sync.Mutex
	seq   uint64
	state State
}

func NewView(fetcher Fetcher) *View {
	return &View{
		fetcher: fetcher,
		logger:  slog.Default().With("component", "category-view"),
	}
}

// Route moves the view to slug. The returned channel is closed once the view
// has settled for this route: immediately when no fetch is needed, or when
// the fetch completes. Routing to the category already shown is a no-op.
func (v *View) Route(ctx context.Context, slug string) <-chan struct{} {
	done := make(chan struct{})

	v.mu.Lock()
	if slug == "" {
		v.seq++
		v.state = State{Status: StatusPending}
		v.mu.Unlock()
		close(done)
		return done
	}

	category := catalog.Lookup(slug)
	keyword, ok := category.Keyword()
	if !ok {
		v.seq++
		v.state = State{Slug: slug, Category: catalog.Unknown, Status: StatusUnknown}
		v.mu.Unlock()
		close(done)
		return done
	}

	if v.state.Status != StatusPending && v.state.Status != StatusUnknown && v.state.Category == category {
		v.state.Slug = slug
		v.mu.Unlock()
		close(done)
		return done
	}

	v.seq++
	seq := v.seq
	v.state = State{Slug: slug, Category: category, Status: StatusLoading}
	v.mu.Unlock()

	go func() {
		defer close(done)
		products, err := v.fetcher.Fetch(ctx, keyword)
		v.apply(seq, products, err)
	}()
	return done
}

// Snapshot returns the current state. The Products slice is shared and must
// not be modified.
func (v *View) Snapshot() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *View) apply(seq uint64, products []coupang.Product, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if seq != v.seq {
		v.logger.Debug("discarding stale result", "seq", seq, "current", v.seq)
		return
	}

	switch {
	case err != nil:
		v.state.Status = StatusError
		v.state.Message = errorMessage(err)
		v.state.Products = nil
		v.logger.Warn("category search failed", "category", v.state.Category.Slug(), "error", err)
	case len(products) == 0:
		v.state.Status = StatusEmpty
		v.state.Products = nil
	default:
		v.state.Status = StatusSuccess
		v.state.Products = products
	}
}

func errorMessage(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Message
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "Request cancelled"
	}
	return err.Error()
}
