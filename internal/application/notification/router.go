package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mandiworks/tradecore-go/internal/adapters/metrics"
	"github.com/mandiworks/tradecore-go/internal/domain/notify"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/config"
)

// Router fans events out to the parties they concern. Every delivery
// passes the recipient's preference, the per-(user, event type)
// debounce and the per-user rate limit before reaching any channel.
// Dropped notifications are dropped silently for the user and loudly
// for the logs.
type Router struct {
	prefs   notify.PreferenceProvider
	senders map[notify.Channel]notify.Sender
	cfg     config.NotificationConfig
	clock   shared.Clock
	logger  zerolog.Logger

	mu        sync.Mutex
	lastSent  map[string]time.Time
	limiters  map[string]*rate.Limiter
	matchSeen map[string]*matchWindow
}

// matchWindow counts match notifications per user inside one top-N
// accounting window.
type matchWindow struct {
	start time.Time
	count int
}

// NewRouter creates a router over the given channel senders
func NewRouter(
	prefs notify.PreferenceProvider,
	senders []notify.Sender,
	cfg config.NotificationConfig,
	clock shared.Clock,
	logger zerolog.Logger,
) *Router {
	byChannel := make(map[notify.Channel]notify.Sender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &Router{
		prefs:     prefs,
		senders:   byChannel,
		cfg:       cfg,
		clock:     clock,
		logger:    logger.With().Str("component", "notifications").Logger(),
		lastSent:  make(map[string]time.Time),
		limiters:  make(map[string]*rate.Limiter),
		matchSeen: make(map[string]*matchWindow),
	}
}

// HandleEnvelope routes one domain event. Registered as an internal
// outbox subscriber; errors bubble into the dispatcher's retry policy.
func (r *Router) HandleEnvelope(ctx context.Context, env outbox.Envelope) error {
	switch env.EventType {
	case outbox.EventMatchProposed, outbox.EventMatchRejected, outbox.EventMatchExpired:
		return r.routeMatch(ctx, env)
	case outbox.EventNegotiationStarted, outbox.EventOfferMade,
		outbox.EventNegotiationAccepted, outbox.EventNegotiationRejected,
		outbox.EventNegotiationExpired, outbox.EventMessageSent:
		return r.routeNegotiation(ctx, env)
	default:
		return nil
	}
}

func (r *Router) routeMatch(ctx context.Context, env outbox.Envelope) error {
	var p outbox.MatchEventPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("match payload: %w", err)
	}

	subject := matchSubject(env.EventType)
	base := map[string]string{
		"match_id":     p.MatchID,
		"commodity_id": p.CommodityID,
		"quantity":     p.AllocatedQuantity,
	}

	// Each party sees its own order and the counterparty id, nothing of
	// the counterparty's risk standing beyond the aggregate status.
	buyerFields := cloneFields(base)
	buyerFields["requirement_id"] = p.RequirementID
	buyerFields["seller_id"] = p.SellerID
	buyerFields["score"] = fmt.Sprintf("%.3f", p.Score)

	sellerFields := cloneFields(base)
	sellerFields["availability_id"] = p.AvailabilityID
	sellerFields["buyer_id"] = p.BuyerID

	isProposal := env.EventType == outbox.EventMatchProposed
	r.deliver(ctx, p.BuyerID, notify.Payload{
		EventType: string(env.EventType),
		Subject:   subject,
		Body:      fmt.Sprintf("Match for %s of commodity %s", p.AllocatedQuantity, p.CommodityID),
		Fields:    buyerFields,
	}, isProposal, p.Score)
	r.deliver(ctx, p.SellerID, notify.Payload{
		EventType: string(env.EventType),
		Subject:   subject,
		Body:      fmt.Sprintf("Match for %s of commodity %s", p.AllocatedQuantity, p.CommodityID),
		Fields:    sellerFields,
	}, isProposal, p.Score)
	return nil
}

func (r *Router) routeNegotiation(ctx context.Context, env outbox.Envelope) error {
	var p outbox.NegotiationEventPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("negotiation payload: %w", err)
	}

	fields := map[string]string{
		"negotiation_id": p.NegotiationID,
		"status":         p.Status,
	}
	if p.Round > 0 {
		fields["round"] = fmt.Sprintf("%d", p.Round)
	}
	payload := notify.Payload{
		EventType: string(env.EventType),
		Subject:   negotiationSubject(env.EventType),
		Body:      fmt.Sprintf("Negotiation %s is %s", p.NegotiationID, p.Status),
		Fields:    fields,
	}
	r.deliver(ctx, p.BuyerID, payload, false, 0)
	r.deliver(ctx, p.SellerID, payload, false, 0)
	return nil
}

// deliver runs the drop chain for one recipient, then fans out to the
// recipient's channels.
func (r *Router) deliver(ctx context.Context, userID string, payload notify.Payload, matchProposal bool, score float64) {
	pref, err := r.prefs.PreferenceFor(ctx, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("preference lookup failed; defaulting to in-app")
		pref = notify.Preference{UserID: userID}
	}
	if pref.OptedOut {
		metrics.RecordNotificationDropped("opted_out")
		return
	}
	if matchProposal && !r.admitMatch(userID, pref.TopN) {
		r.logger.Debug().Str("user_id", userID).Float64("score", score).Msg("match notification over top-n, dropped")
		metrics.RecordNotificationDropped("over_top_n")
		return
	}
	if !r.debounce(userID, payload.EventType) {
		r.logger.Debug().Str("user_id", userID).Str("event_type", payload.EventType).Msg("notification debounced")
		metrics.RecordNotificationDropped("debounced")
		return
	}
	if !r.limiter(userID).Allow() {
		r.logger.Warn().Str("user_id", userID).Str("event_type", payload.EventType).Msg("notification rate limited")
		metrics.RecordNotificationDropped("rate_limited")
		return
	}

	for _, channel := range pref.EnabledChannels() {
		sender, ok := r.senders[channel]
		if !ok {
			r.logger.Debug().Str("channel", string(channel)).Msg("no sender for channel")
			continue
		}
		sendCtx, cancel := context.WithTimeout(ctx, r.cfg.FanoutTimeout)
		err := sender.Send(sendCtx, userID, payload)
		cancel()
		if err != nil {
			r.logger.Error().Err(err).
				Str("user_id", userID).
				Str("channel", string(channel)).
				Msg("notification send failed")
			continue
		}
		metrics.RecordNotificationSent(string(channel))
	}
}

// debounce admits at most one notification per (user, event type) per
// window. Returns true when the notification may proceed.
func (r *Router) debounce(userID, eventType string) bool {
	if r.cfg.DebounceWindow <= 0 {
		return true
	}
	key := userID + "|" + eventType
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if last, ok := r.lastSent[key]; ok && now.Sub(last) < r.cfg.DebounceWindow {
		return false
	}
	r.lastSent[key] = now
	return true
}

// admitMatch enforces the top-N preference inside its own accounting
// window. A zero window makes the cap apply forever within one run.
func (r *Router) admitMatch(userID string, topN int) bool {
	if topN <= 0 {
		return true
	}
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.matchSeen[userID]
	if !ok || (r.cfg.TopNWindow > 0 && now.Sub(w.start) >= r.cfg.TopNWindow) {
		w = &matchWindow{start: now}
		r.matchSeen[userID] = w
	}
	if w.count >= topN {
		return false
	}
	w.count++
	return true
}

func (r *Router) limiter(userID string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(r.cfg.RatePerMinute/60.0), r.cfg.Burst)
		r.limiters[userID] = l
	}
	return l
}

func cloneFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields)+3)
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func matchSubject(t outbox.EventType) string {
	switch t {
	case outbox.EventMatchProposed:
		return "New match proposed"
	case outbox.EventMatchRejected:
		return "Match rejected"
	default:
		return "Match expired"
	}
}

func negotiationSubject(t outbox.EventType) string {
	switch t {
	case outbox.EventNegotiationStarted:
		return "Negotiation started"
	case outbox.EventOfferMade:
		return "New offer received"
	case outbox.EventNegotiationAccepted:
		return "Negotiation accepted"
	case outbox.EventNegotiationRejected:
		return "Negotiation closed"
	case outbox.EventMessageSent:
		return "New message"
	default:
		return "Negotiation expired"
	}
}
