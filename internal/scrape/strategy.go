package scrape

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/guarzo/markethub/internal/model"
)

// SyntheticRange bounds the fallback price for a platform. Fallback prices
// are drawn uniformly from [Base, Base+Spread).
type SyntheticRange struct {
	Base   float64
	Spread float64
}

// Strategy holds the extraction rules for one platform: the hostname
// fragment its product URLs must contain and an ordered list of price
// selectors. Platforms with no selectors skip extraction entirely and go
// straight to the synthetic fallback.
type Strategy struct {
	HostPattern string
	Selectors   []string
	Fallback    SyntheticRange
}

// Attempts reports whether the platform attempts real extraction at all.
func (s Strategy) Attempts() bool {
	return len(s.Selectors) > 0
}

// MatchesHost reports whether rawURL points at the platform's site.
func (s Strategy) MatchesHost(rawURL string) bool {
	if s.HostPattern == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(u.Hostname()), s.HostPattern)
}

// Extract runs the selector rules against a parsed page in declared order
// and returns the first positive price found. A selector whose text fails
// to parse, or parses to a non-positive value, is skipped. The false return
// is an extraction miss, not an error.
func (s Strategy) Extract(doc *goquery.Document) (float64, bool) {
	for _, sel := range s.Selectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text == "" {
			continue
		}
		if price, ok := parsePrice(text); ok {
			return price, true
		}
	}
	return 0, false
}

// parsePrice converts scraped price text to a positive number, stripping
// thousands separators and currency glyphs. Returns false for anything that
// does not parse or is not strictly positive.
func parsePrice(text string) (float64, bool) {
	cleaner := strings.NewReplacer(",", "", "₹", "", "$", "", " ", "", " ", "")
	cleaned := cleaner.Replace(text)
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || price <= 0 {
		return 0, false
	}
	return price, true
}

// strategies is the closed per-platform rule table. Selector order matters:
// the first rule that yields a positive price wins. eBay and Other carry no
// selectors and are fallback-only.
var strategies = map[model.Platform]Strategy{
	model.PlatformAmazon: {
		HostPattern: "amazon",
		Selectors: []string{
			".a-price-whole",
			"#priceblock_ourprice",
			"#priceblock_dealprice",
			".a-price .a-offscreen",
			"span.a-price-whole",
		},
		Fallback: SyntheticRange{Base: 50000, Spread: 100000},
	},
	model.PlatformFlipkart: {
		HostPattern: "flipkart",
		Selectors: []string{
			"._30jeq3._16Jk6d",
			"._30jeq3",
			".CEmiEU div",
			"._1vC4OE",
		},
		Fallback: SyntheticRange{Base: 40000, Spread: 110000},
	},
	model.PlatformEBay: {
		Fallback: SyntheticRange{Base: 30000, Spread: 120000},
	},
	model.PlatformOther: {
		Fallback: SyntheticRange{Base: 20000, Spread: 130000},
	},
}

// StrategyFor returns the extraction strategy for a platform. Unknown
// platforms get the Other fallback range.
func StrategyFor(platform model.Platform) Strategy {
	if s, ok := strategies[platform]; ok {
		return s
	}
	return strategies[model.PlatformOther]
}

// Strategies returns a copy of the full rule table, for callers that need
// to enumerate or override it (tests, mainly).
func Strategies() map[model.Platform]Strategy {
	out := make(map[model.Platform]Strategy, len(strategies))
	for k, v := range strategies {
		out[k] = v
	}
	return out
}
