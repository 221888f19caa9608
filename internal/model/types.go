package model

import "time"

// Platform identifies the e-commerce site a listing is tracked on.
type Platform string

const (
	PlatformAmazon   Platform = "Amazon"
	PlatformFlipkart Platform = "Flipkart"
	PlatformEBay     Platform = "eBay"
	PlatformOther    Platform = "Other"
)

// Platforms lists every supported platform tag.
var Platforms = []Platform{PlatformAmazon, PlatformFlipkart, PlatformEBay, PlatformOther}

// Valid reports whether p is one of the supported platform tags.
func (p Platform) Valid() bool {
	switch p {
	case PlatformAmazon, PlatformFlipkart, PlatformEBay, PlatformOther:
		return true
	}
	return false
}

// Currency is the currency a listing is priced in.
type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
)

func (c Currency) Valid() bool {
	return c == CurrencyINR || c == CurrencyUSD
}

// PricePoint is one entry in a listing's embedded price history.
type PricePoint struct {
	Price float64   `json:"price"`
	Date  time.Time `json:"date"`
}

// PriceSample is a single timestamped price observation for a listing.
// Scraped distinguishes a genuinely extracted value from a synthetic
// fallback. Samples are immutable once produced.
type PriceSample struct {
	Price        float64   `json:"price"`
	Availability bool      `json:"availability"`
	Timestamp    time.Time `json:"timestamp"`
	Scraped      bool      `json:"scraped"`
}

// Listing is a tracked product page. The embedded PriceHistory is
// append-only and chronological; engagement counters only ever grow.
type Listing struct {
	ID             string       `json:"id" db:"id"`
	UserID         string       `json:"userId" db:"user_id"`
	Name           string       `json:"name" db:"name"`
	URL            string       `json:"url" db:"url"`
	Platform       Platform     `json:"platform" db:"platform"`
	Currency       Currency     `json:"currency" db:"currency"`
	CurrentPrice   float64      `json:"currentPrice" db:"current_price"`
	TargetPrice    *float64     `json:"targetPrice,omitempty" db:"target_price"`
	Specifications string       `json:"specifications" db:"specifications"`
	PriceHistory   []PricePoint `json:"priceHistory" db:"-"`
	LastChecked    time.Time    `json:"lastChecked" db:"last_checked"`
	IsActive       bool         `json:"isActive" db:"is_active"`
	Views          int64        `json:"views" db:"views"`
	PriceChecks    int64        `json:"priceChecks" db:"price_checks"`
	CreatedAt      time.Time    `json:"createdAt" db:"created_at"`
}

// TargetReached reports whether the listing's target price is set and the
// current price has dropped to or below it.
func (l *Listing) TargetReached() bool {
	return l.TargetPrice != nil && l.CurrentPrice <= *l.TargetPrice
}

// TrendPoint is a derived daily statistic over price samples. It is
// recomputed on every query and never persisted.
type TrendPoint struct {
	Date     string  `json:"date"`
	AvgPrice float64 `json:"avgPrice"`
	MinPrice float64 `json:"minPrice"`
	MaxPrice float64 `json:"maxPrice"`
}
