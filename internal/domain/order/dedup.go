package order

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/mandiworks/tradecore-go/internal/domain/commodity"
	"github.com/mandiworks/tradecore-go/internal/domain/partner"
)

// qualityHash canonicalises a quality parameter map for hashing
func qualityHash(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.4f", k, params[k]))
	}
	return strings.Join(parts, ";")
}

// rangeHash canonicalises accepted quality ranges for hashing
func rangeHash(params map[string]commodity.QualityRange) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.4f..%.4f", k, params[k].Min, params[k].Max))
	}
	return strings.Join(parts, ";")
}

func dedupDigest(fields ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// DedupKey identifies a requirement for the duplicate-order guard:
// same buyer, commodity, quantity, price, delivery set and quality
// expectations collide. Enforced by a unique partial index on active
// orders; the risk engine pre-checks with the same key.
func (r *Requirement) DedupKey() string {
	quality := rangeHash(r.AcceptedQuality)
	return dedupDigest(
		string(partner.SideBuy),
		r.BuyerID,
		r.CommodityID,
		r.Quantity.String(),
		r.TargetPrice.Amount.String(),
		DeliveryHash(r.DeliveryLocations),
		quality,
	)
}

// DedupKey identifies an availability for the duplicate-order guard
func (a *Availability) DedupKey() string {
	loc := a.LocationID
	if loc == "" && a.AdHoc != nil {
		loc = fmt.Sprintf("geo:%.5f,%.5f", a.AdHoc.Point.Lat, a.AdHoc.Point.Lng)
	}
	return dedupDigest(
		string(partner.SideSell),
		a.SellerID,
		a.CommodityID,
		a.TotalQuantity.String(),
		a.BasePrice.Amount.String(),
		loc,
		qualityHash(a.QualityParams),
	)
}
