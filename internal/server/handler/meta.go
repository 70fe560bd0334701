package handler

import (
	"net/http"
	"sort"
)

// MetaHandler serves API metadata at the root route.
type MetaHandler struct {
	network string
	asset   string
	prices  map[string]string
}

// NewMetaHandler creates a MetaHandler advertising the payment network,
// asset and per-route prices.
func NewMetaHandler(network, asset string, prices map[string]string) *MetaHandler {
	return &MetaHandler{
		network: network,
		asset:   asset,
		prices:  prices,
	}
}

type routePrice struct {
	Route string `json:"route"`
	Price string `json:"price"`
}

// Index describes the gateway and its priced routes.
// GET /
func (h *MetaHandler) Index(w http.ResponseWriter, r *http.Request) {
	routes := make([]routePrice, 0, len(h.prices))
	for route, price := range h.prices {
		routes = append(routes, routePrice{Route: route, Price: price})
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Route < routes[j].Route })

	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "flowpay",
		"network": h.network,
		"asset":   h.asset,
		"payment": "x402",
		"routes":  routes,
	})
}
