package storefront

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var koPrinter = message.NewPrinter(language.Korean)

// FormatPrice renders a won amount with Korean digit grouping, e.g. 12,345원.
func FormatPrice(price int64) string {
	return koPrinter.Sprintf("%d원", price)
}
