package coupang

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	apperrors "github.com/nyanglife/catshop/pkg/errors"
)

// SampleCatalog serves a fixed local product list in the upstream's response
// shape. It needs no credentials and makes no network calls.
type SampleCatalog struct {
	products []Product
}

// NewSampleCatalog returns the built-in catalog.
func NewSampleCatalog() *SampleCatalog {
	return &SampleCatalog{products: sampleProducts}
}

// Search returns the sample products whose category name appears in keyword.
// A keyword matching no category yields an empty, successful result.
func (s *SampleCatalog) Search(ctx context.Context, keyword string) (json.RawMessage, error) {
	if keyword == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, MsgKeywordRequired)
	}

	matched := make([]Product, 0)
	for _, p := range s.products {
		if p.CategoryName != "" && strings.Contains(keyword, p.CategoryName) {
			p.Keyword = keyword
			matched = append(matched, p)
		}
	}
	if len(matched) > SearchLimit {
		matched = matched[:SearchLimit]
	}
	for i := range matched {
		matched[i].Rank = i + 1
	}

	body, err := json.Marshal(SearchResponse{
		RCode:    SuccessCode,
		RMessage: "",
		Data: SearchData{
			LandingURL:  "https://link.coupang.com/re/AFFSRP?keyword=" + keyword,
			ProductData: matched,
		},
	})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, MsgFetchFailed)
	}
	return body, nil
}

var sampleProducts = []Product{
	{ProductID: 1001, ProductName: "로얄캐닌 인도어 27 고양이 사료 2kg", ProductPrice: 38900, ProductImage: "https://static.example.com/cat/food-1.jpg", ProductURL: "https://link.coupang.com/a/food1001", IsRocket: true, CategoryName: "사료"},
	{ProductID: 1002, ProductName: "오리젠 캣앤키튼 1.8kg", ProductPrice: 52000, ProductImage: "https://static.example.com/cat/food-2.jpg", ProductURL: "https://link.coupang.com/a/food1002", IsFreeShipping: true, CategoryName: "사료"},
	{ProductID: 1101, ProductName: "에버크린 고양이 모래 무향 11.3kg", ProductPrice: 41500, ProductImage: "https://static.example.com/cat/sand-1.jpg", ProductURL: "https://link.coupang.com/a/sand1101", IsRocket: true, CategoryName: "모래"},
	{ProductID: 1102, ProductName: "두부모래 오리지널 7L 3개", ProductPrice: 19800, ProductImage: "https://static.example.com/cat/sand-2.jpg", ProductURL: "https://link.coupang.com/a/sand1102", CategoryName: "모래"},
	{ProductID: 1201, ProductName: "후드형 고양이 화장실 대형", ProductPrice: 27900, ProductImage: "https://static.example.com/cat/toilet-1.jpg", ProductURL: "https://link.coupang.com/a/toilet1201", CategoryName: "화장실"},
	{ProductID: 1301, ProductName: "골판지 스크래처 와이드 3P", ProductPrice: 12900, ProductImage: "https://static.example.com/cat/scratcher-1.jpg", ProductURL: "https://link.coupang.com/a/scratcher1301", IsFreeShipping: true, CategoryName: "스크래처"},
	{ProductID: 1401, ProductName: "깃털 낚싯대 장난감 세트", ProductPrice: 8900, ProductImage: "https://static.example.com/cat/toy-1.jpg", ProductURL: "https://link.coupang.com/a/toy1401", CategoryName: "장난감"},
	{ProductID: 1402, ProductName: "자동 레이저 포인터 장난감", ProductPrice: 15900, ProductImage: "https://static.example.com/cat/toy-2.jpg", ProductURL: "https://link.coupang.com/a/toy1402", IsRocket: true, CategoryName: "장난감"},
	{ProductID: 1501, ProductName: "원목 캣타워 5단 대형", ProductPrice: 129000, ProductImage: "https://static.example.com/cat/tower-1.jpg", ProductURL: "https://link.coupang.com/a/tower1501", CategoryName: "캣타워"},
	{ProductID: 1601, ProductName: "세라믹 고양이 식기 높이조절", ProductPrice: 17500, ProductImage: "https://static.example.com/cat/dishes-1.jpg", ProductURL: "https://link.coupang.com/a/dishes1601", CategoryName: "식기"},
	{ProductID: 1701, ProductName: "무선 순환 고양이 급수기 2L", ProductPrice: 32900, ProductImage: "https://static.example.com/cat/fountain-1.jpg", ProductURL: "https://link.coupang.com/a/fountain1701", IsRocket: true, CategoryName: "급수기"},
	{ProductID: 1801, ProductName: "겨울용 숨숨집 고양이 하우스", ProductPrice: 23900, ProductImage: "https://static.example.com/cat/house-1.jpg", ProductURL: "https://link.coupang.com/a/house1801", CategoryName: "하우스"},
	{ProductID: 1901, ProductName: "하드 케이스 고양이 이동장 M", ProductPrice: 36800, ProductImage: "https://static.example.com/cat/carrier-1.jpg", ProductURL: "https://link.coupang.com/a/carrier1901", IsFreeShipping: true, CategoryName: "이동장"},
}
