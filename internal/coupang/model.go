package coupang

// SearchLimit caps every upstream search. Callers cannot change it.
const SearchLimit = 50

// SuccessCode is the rCode the upstream reports for a successful search.
const SuccessCode = "0"

// SearchRequest is the outbound JSON body.
type SearchRequest struct {
	Keyword string `json:"keyword"`
	Limit   int    `json:"limit"`
}

// Product is a single search hit as the upstream reports it. Prices are in
// won.
type Product struct {
	ProductID      int64  `json:"productId"`
	ProductName    string `json:"productName"`
	ProductPrice   int64  `json:"productPrice"`
	ProductImage   string `json:"productImage"`
	ProductURL     string `json:"productUrl"`
	Keyword        string `json:"keyword,omitempty"`
	Rank           int    `json:"rank,omitempty"`
	IsRocket       bool   `json:"isRocket,omitempty"`
	IsFreeShipping bool   `json:"isFreeShipping,omitempty"`
	CategoryName   string `json:"categoryName,omitempty"`
}

// SearchResponse is the upstream envelope. The proxy never re-encodes it;
// the type exists for consumers and the sample catalog.
type SearchResponse struct {
	RCode    string     `json:"rCode"`
	RMessage string     `json:"rMessage"`
	Data     SearchData `json:"data"`
}

// SearchData holds the result list.
type SearchData struct {
	LandingURL  string    `json:"landingUrl,omitempty"`
	ProductData []Product `json:"productData"`
}
