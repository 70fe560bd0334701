package payment

import "strings"

// PriceTable maps "METHOD /path/pattern" route keys to prices in atomic
// units of the payment asset. A pattern segment written as {name} or *
// matches any single path segment. Unlisted routes are free.
type PriceTable struct {
	entries []priceEntry
}

type priceEntry struct {
	method   string
	segments []string
	amount   string
}

// NewPriceTable builds a table from route-keyed amounts, e.g.
//
//	{"GET /markets": "10000", "GET /markets/{tokenId}/quote": "5000"}
func NewPriceTable(prices map[string]string) *PriceTable {
	t := &PriceTable{}
	for key, amount := range prices {
		method, pattern, ok := strings.Cut(key, " ")
		if !ok || amount == "" {
			continue
		}
		t.entries = append(t.entries, priceEntry{
			method:   strings.ToUpper(strings.TrimSpace(method)),
			segments: splitPath(pattern),
			amount:   amount,
		})
	}
	return t
}

// Price returns the atomic-unit amount for a request, or false when the
// route is not priced.
func (t *PriceTable) Price(method, path string) (string, bool) {
	segments := splitPath(path)
	for _, e := range t.entries {
		if e.method != strings.ToUpper(method) {
			continue
		}
		if matchSegments(e.segments, segments) {
			return e.amount, true
		}
	}
	return "", false
}

// RouteKey renders the canonical "METHOD /pattern" key that priced the
// request, used for settlement records. Returns the literal method+path when
// no pattern matches.
func (t *PriceTable) RouteKey(method, path string) string {
	segments := splitPath(path)
	for _, e := range t.entries {
		if e.method == strings.ToUpper(method) && matchSegments(e.segments, segments) {
			return e.method + " /" + strings.Join(e.segments, "/")
		}
	}
	return strings.ToUpper(method) + " " + path
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, seg := range pattern {
		if seg == "*" || strings.HasPrefix(seg, "{") {
			continue
		}
		if seg != path[i] {
			return false
		}
	}
	return true
}
