// Package catalog defines the fixed set of product categories shown in the
// storefront and how each maps to a search keyword.
package catalog

// Category is a closed enumeration of storefront categories. Unknown is the
// zero value so an unresolved slug can never masquerade as a real category.
type Category int

const (
	Unknown Category = iota
	Food
	Sand
	Toilet
	Scratcher
	Toy
	CatTower
	Dishes
	WaterFountain
	House
	Carrier
)

// KeywordPrefix is prepended to every category name to form the search keyword.
const KeywordPrefix = "고양이 "

// Labels for states where no category name is available.
const (
	UnknownLabel = "알 수 없는 카테고리"
	LoadingLabel = "로딩 중..."
)

type entry struct {
	slug string
	name string
}

// entries is indexed by Category; its length is checked against the
// enumeration at compile time below.
var entries = [...]entry{
	Unknown:       {"", UnknownLabel},
	Food:          {"food", "사료"},
	Sand:          {"sand", "모래"},
	Toilet:        {"toilet", "화장실"},
	Scratcher:     {"scratcher", "스크래처"},
	Toy:           {"toy", "장난감"},
	CatTower:      {"cattower", "캣타워"},
	Dishes:        {"dishes", "식기"},
	WaterFountain: {"water-fountain", "급수기"},
	House:         {"house", "하우스"},
	Carrier:       {"carrier", "이동장"},
}

// A new Category constant without a table entry fails to compile here.
var _ = [1]struct{}{}[len(entries)-int(Carrier)-1]

var bySlug = func() map[string]Category {
	m := make(map[string]Category, len(entries))
	for c := Food; c <= Carrier; c++ {
		m[entries[c].slug] = c
	}
	return m
}()

// All returns every routable category in display order.
func All() []Category {
	out := make([]Category, 0, len(entries)-1)
	for c := Food; c <= Carrier; c++ {
		out = append(out, c)
	}
	return out
}

// Lookup resolves a URL slug. Unmapped slugs resolve to Unknown.
func Lookup(slug string) Category {
	return bySlug[slug]
}

// Known reports whether c is a routable category.
func (c Category) Known() bool {
	return c > Unknown && c <= Carrier
}

// Slug returns the URL segment, or "" for Unknown.
func (c Category) Slug() string {
	if !c.Known() {
		return ""
	}
	return entries[c].slug
}

// Name returns the display name, or UnknownLabel.
func (c Category) Name() string {
	if !c.Known() {
		return UnknownLabel
	}
	return entries[c].name
}

// Keyword returns the search keyword for c. ok is false for Unknown, which
// must never be searched.
func (c Category) Keyword() (keyword string, ok bool) {
	if !c.Known() {
		return "", false
	}
	return KeywordPrefix + entries[c].name, true
}

// Path returns the storefront path for c.
func (c Category) Path() string {
	return "/products/" + c.Slug()
}

func (c Category) String() string {
	if !c.Known() {
		return "unknown"
	}
	return entries[c].slug
}
