package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mandiworks/tradecore-go/internal/domain/negotiation"
	"github.com/mandiworks/tradecore-go/internal/domain/risk"
	"github.com/mandiworks/tradecore-go/internal/domain/trade"
)

// historySampleLimit caps how many settled negotiations feed the
// behavioural averages. Old history stops moving the needle anyway.
const historySampleLimit = 200

// GormHistoryProvider derives a partner's behavioural features from the
// matches and negotiations tables. No payment ledger exists here, so
// settlement time of accepted negotiations stands in for payment delay.
type GormHistoryProvider struct {
	db *gorm.DB
}

// NewGormHistoryProvider creates a new GORM history provider
func NewGormHistoryProvider(db *gorm.DB) *GormHistoryProvider {
	return &GormHistoryProvider{db: db}
}

var _ risk.HistoryProvider = (*GormHistoryProvider)(nil)

// TradeHistory reports the partner's trade count, dispute rate, average
// settlement delay in days and average trade value. Rejected matches
// count as disputes against all terminal matches.
func (r *GormHistoryProvider) TradeHistory(ctx context.Context, partnerID string) (int, float64, float64, float64, error) {
	db := dbFrom(ctx, r.db)

	var concluded, rejected, terminal int64
	base := db.Model(&MatchModel{}).Where("buyer_id = ? OR seller_id = ?", partnerID, partnerID)
	if err := base.Session(&gorm.Session{}).
		Where("status = ?", string(trade.MatchConcluded)).Count(&concluded).Error; err != nil {
		return 0, 0, 0, 0, fmt.Errorf("failed to count concluded matches: %w", err)
	}
	if err := base.Session(&gorm.Session{}).
		Where("status = ?", string(trade.MatchRejected)).Count(&rejected).Error; err != nil {
		return 0, 0, 0, 0, fmt.Errorf("failed to count rejected matches: %w", err)
	}
	if err := base.Session(&gorm.Session{}).
		Where("status IN ?", []string{
			string(trade.MatchConcluded),
			string(trade.MatchRejected),
			string(trade.MatchExpired),
		}).Count(&terminal).Error; err != nil {
		return 0, 0, 0, 0, fmt.Errorf("failed to count terminal matches: %w", err)
	}

	disputeRate := 0.0
	if terminal > 0 {
		disputeRate = float64(rejected) / float64(terminal)
	}

	avgDelay, avgValue, err := r.settlementStats(ctx, partnerID)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return int(concluded), disputeRate, avgDelay, avgValue, nil
}

// settlementStats averages days-to-acceptance and the agreed offer
// value over the partner's most recent accepted negotiations.
func (r *GormHistoryProvider) settlementStats(ctx context.Context, partnerID string) (float64, float64, error) {
	db := dbFrom(ctx, r.db)

	var negotiations []NegotiationModel
	result := db.
		Where("(buyer_id = ? OR seller_id = ?) AND status = ? AND terminated_at IS NOT NULL",
			partnerID, partnerID, string(negotiation.StatusAccepted)).
		Order("terminated_at desc").
		Limit(historySampleLimit).
		Find(&negotiations)
	if result.Error != nil {
		return 0, 0, fmt.Errorf("failed to load accepted negotiations: %w", result.Error)
	}
	if len(negotiations) == 0 {
		return 0, 0, nil
	}

	ids := make([]string, 0, len(negotiations))
	var totalDelay time.Duration
	for _, n := range negotiations {
		ids = append(ids, n.ID)
		totalDelay += n.TerminatedAt.Sub(n.CreatedAt)
	}
	avgDelayDays := totalDelay.Hours() / 24 / float64(len(negotiations))

	// Last binding offer per negotiation carries the agreed terms.
	var offers []OfferModel
	result = db.
		Where("negotiation_id IN ? AND actor <> ?", ids, string(negotiation.ActorAIAdvisory)).
		Order("round asc").
		Find(&offers)
	if result.Error != nil {
		return 0, 0, fmt.Errorf("failed to load agreed offers: %w", result.Error)
	}
	agreed := make(map[string]OfferModel, len(ids))
	for _, o := range offers {
		agreed[o.NegotiationID] = o
	}

	total := decimal.Zero
	valued := 0
	for _, o := range agreed {
		price, err := decimal.NewFromString(o.Price)
		if err != nil {
			return 0, 0, fmt.Errorf("corrupt price for offer %s: %w", o.ID, err)
		}
		quantity, err := decimal.NewFromString(o.Quantity)
		if err != nil {
			return 0, 0, fmt.Errorf("corrupt quantity for offer %s: %w", o.ID, err)
		}
		total = total.Add(price.Mul(quantity))
		valued++
	}
	avgValue := 0.0
	if valued > 0 {
		avgValue, _ = total.Div(decimal.NewFromInt(int64(valued))).Float64()
	}
	return avgDelayDays, avgValue, nil
}
