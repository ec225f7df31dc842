package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/mandiworks/tradecore-go/internal/adapters/cache"
	"github.com/mandiworks/tradecore-go/internal/adapters/metrics"
	"github.com/mandiworks/tradecore-go/internal/adapters/ml"
	notifadapters "github.com/mandiworks/tradecore-go/internal/adapters/notification"
	"github.com/mandiworks/tradecore-go/internal/adapters/persistence"
	"github.com/mandiworks/tradecore-go/internal/adapters/sanctions"
	"github.com/mandiworks/tradecore-go/internal/application/capability"
	"github.com/mandiworks/tradecore-go/internal/application/common"
	"github.com/mandiworks/tradecore-go/internal/application/dispatch"
	"github.com/mandiworks/tradecore-go/internal/application/matching"
	"github.com/mandiworks/tradecore-go/internal/application/negotiating"
	"github.com/mandiworks/tradecore-go/internal/application/notification"
	"github.com/mandiworks/tradecore-go/internal/application/orders"
	apprisk "github.com/mandiworks/tradecore-go/internal/application/risk"
	"github.com/mandiworks/tradecore-go/internal/domain/notify"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/config"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/jobs"
)

// dedupPurgeInterval is how often expired event-dedup rows are removed
const dedupPurgeInterval = time.Hour

// Daemon is the composition root: it wires repositories, engines and
// background loops over one database handle and exposes the mediator as
// the command surface. Transport adapters and tests embed it.
type Daemon struct {
	cfg       *config.Config
	db        *gorm.DB
	logger    zerolog.Logger
	mediator  common.Mediator
	scheduler *matching.Scheduler
	sweeper   *matching.Sweeper
	expirer   *negotiating.Expirer
	dispatch  *dispatch.Dispatcher
	processed common.ProcessedEventStore
	jobs      *jobs.Runner
	clock     shared.Clock
}

// New wires the full engine. publisher may be nil when no external bus
// is configured.
func New(cfg *config.Config, db *gorm.DB, publisher outbox.Publisher, logger zerolog.Logger) (*Daemon, error) {
	clock := shared.NewRealClock()

	// Repositories. Partner reads go through the in-memory cache; the
	// partner-status consumer invalidates on status changes.
	partnerCache := cache.NewPartnerCache(persistence.NewGormPartnerRepository(db), clock)
	documents := persistence.NewGormDocumentRepository(db)
	commodities := persistence.NewGormCommodityRepository(db)
	requirements := persistence.NewGormRequirementRepository(db)
	availabilities := persistence.NewGormAvailabilityRepository(db)
	matches := persistence.NewGormMatchRepository(db)
	negotiations := persistence.NewGormNegotiationRepository(db)
	outboxRepo := persistence.NewGormOutboxRepository(db, clock)
	auditLog := persistence.NewGormAuditRepository(db)
	idempotency := persistence.NewGormIdempotencyStore(db)
	processed := persistence.NewGormProcessedEventStore(db)
	notifications := persistence.NewGormNotificationStore(db)
	history := persistence.NewGormHistoryProvider(db)
	tx := persistence.NewTxRunner(db)

	// Risk and capability chain
	sanctionsList := sanctions.NewStaticList(cfg.Risk.SanctionedCountries)
	resolver := capability.NewResolver(documents, sanctionsList, clock, logger)
	predictor := ml.NewRuleBasedPredictor()
	advisor := ml.NewRuleBasedAdvisor(clock)
	riskEngine := apprisk.NewEngine(partnerCache, documents, requirements, availabilities,
		sanctionsList, predictor, history, cfg.Risk, clock, logger)
	compliance := apprisk.NewCompliance(resolver, documents, sanctionsList, cfg.Risk, clock, logger)

	// Matching engine
	validator := matching.NewValidator(resolver, riskEngine, compliance, cfg.Risk, clock, logger)
	scorer := matching.NewScorer(cfg.Scoring, cfg.Matching.MaxDeliveryKm)
	finder := matching.NewFinder(requirements, availabilities, partnerCache, commodities,
		validator, scorer, outboxRepo, auditLog, cfg.Matching, clock, logger)
	allocator := matching.NewAllocator(tx, requirements, availabilities, matches,
		outboxRepo, auditLog, cfg.Matching, clock, logger)
	scheduler := matching.NewScheduler(finder, allocator, requirements, availabilities,
		processed, outboxRepo, auditLog, cfg.Matching, clock, logger)
	sweeper := matching.NewSweeper(scheduler, requirements, availabilities, cfg.Matching, clock, logger)

	// Negotiation expiry
	expirer := negotiating.NewExpirer(negotiations, requirements, tx, outboxRepo,
		cfg.Negotiation, clock, logger)

	// Notification fan-out
	prefs := notifadapters.NewStaticPreferences()
	senders := []notify.Sender{
		notifadapters.NewInAppSender(notifications, clock),
		notifadapters.NewLogSender(notify.ChannelPush, logger),
		notifadapters.NewLogSender(notify.ChannelEmail, logger),
		notifadapters.NewLogSender(notify.ChannelSMS, logger),
	}
	router := notification.NewRouter(prefs, senders, cfg.Notification, clock, logger)

	// Outbox dispatch with internal subscribers
	dispatcher := dispatch.NewDispatcher(outboxRepo, publisher, auditLog, cfg.Outbox, clock, logger)
	dispatcher.Subscribe(scheduler.HandleEnvelope, matching.MatchingEventTypes...)
	dispatcher.Subscribe(router.HandleEnvelope)
	partnerConsumer := orders.NewPartnerStatusConsumer(requirements, availabilities,
		partnerCache, tx, outboxRepo, auditLog, clock, logger)
	dispatcher.Subscribe(partnerConsumer.HandleEnvelope, outbox.EventPartnerStatusChanged)

	// Command surface
	med := common.NewMediator()

	if err := common.RegisterHandler[*orders.CreateRequirementCommand](med,
		orders.NewCreateRequirementHandler(partnerCache, commodities, requirements,
			resolver, riskEngine, advisor, tx, idempotency, outboxRepo, auditLog, clock, logger)); err != nil {
		return nil, fmt.Errorf("failed to register CreateRequirement handler: %w", err)
	}
	if err := common.RegisterHandler[*orders.CreateAvailabilityCommand](med,
		orders.NewCreateAvailabilityHandler(partnerCache, commodities, availabilities,
			resolver, riskEngine, advisor, tx, idempotency, outboxRepo, auditLog, clock, logger)); err != nil {
		return nil, fmt.Errorf("failed to register CreateAvailability handler: %w", err)
	}
	if err := common.RegisterHandler[*orders.CancelOrderCommand](med,
		orders.NewCancelOrderHandler(requirements, availabilities, tx, outboxRepo, auditLog, clock, logger)); err != nil {
		return nil, fmt.Errorf("failed to register CancelOrder handler: %w", err)
	}
	if err := common.RegisterHandler[*orders.GetMatchesQuery](med,
		orders.NewGetMatchesHandler(requirements, availabilities, matches)); err != nil {
		return nil, fmt.Errorf("failed to register GetMatches handler: %w", err)
	}

	if err := common.RegisterHandler[*apprisk.AssessTradeRiskQuery](med,
		apprisk.NewAssessTradeRiskHandler(requirements, availabilities, partnerCache,
			commodities, riskEngine, compliance)); err != nil {
		return nil, fmt.Errorf("failed to register AssessTradeRisk handler: %w", err)
	}
	if err := common.RegisterHandler[*apprisk.OverrideRiskCommand](med,
		apprisk.NewOverrideRiskHandler(requirements, tx, outboxRepo, auditLog, clock, logger)); err != nil {
		return nil, fmt.Errorf("failed to register OverrideRisk handler: %w", err)
	}

	if err := common.RegisterHandler[*negotiating.StartNegotiationCommand](med,
		negotiating.NewStartNegotiationHandler(negotiations, requirements, availabilities,
			matches, tx, outboxRepo, clock, logger)); err != nil {
		return nil, fmt.Errorf("failed to register StartNegotiation handler: %w", err)
	}
	if err := common.RegisterHandler[*negotiating.OfferCommand](med,
		negotiating.NewOfferHandler(negotiations, advisor, tx, outboxRepo, cfg.Risk, clock, logger)); err != nil {
		return nil, fmt.Errorf("failed to register Offer handler: %w", err)
	}
	if err := common.RegisterHandler[*negotiating.SendMessageCommand](med,
		negotiating.NewSendMessageHandler(negotiations, tx, outboxRepo, clock, logger)); err != nil {
		return nil, fmt.Errorf("failed to register SendMessage handler: %w", err)
	}

	// One close handler serves all three terminal transitions
	closeHandler := negotiating.NewCloseHandler(negotiations, matches, tx, outboxRepo, auditLog, clock, logger)
	if err := common.RegisterHandler[*negotiating.AcceptCommand](med, closeHandler); err != nil {
		return nil, fmt.Errorf("failed to register Accept handler: %w", err)
	}
	if err := common.RegisterHandler[*negotiating.RejectCommand](med, closeHandler); err != nil {
		return nil, fmt.Errorf("failed to register Reject handler: %w", err)
	}
	if err := common.RegisterHandler[*negotiating.WithdrawCommand](med, closeHandler); err != nil {
		return nil, fmt.Errorf("failed to register Withdraw handler: %w", err)
	}

	return &Daemon{
		cfg:       cfg,
		db:        db,
		logger:    logger,
		mediator:  med,
		scheduler: scheduler,
		sweeper:   sweeper,
		expirer:   expirer,
		dispatch:  dispatcher,
		processed: processed,
		jobs:      jobs.NewRunner(logger),
		clock:     clock,
	}, nil
}

// Mediator is the command/query surface of the engine
func (d *Daemon) Mediator() common.Mediator {
	return d.mediator
}

// Run starts the background loops and blocks until the context ends
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.scheduleJobs(); err != nil {
		return err
	}
	d.jobs.Start()
	defer d.jobs.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.scheduler.Run(ctx) })
	g.Go(func() error { return d.dispatch.Run(ctx) })
	if d.cfg.Metrics.Enabled {
		g.Go(func() error { return d.serveMetrics(ctx) })
	}

	d.logger.Info().Msg("engine running")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// scheduleJobs registers the cron-driven maintenance work: the matching
// sweeper, negotiation expiry and event-dedup retention.
func (d *Daemon) scheduleJobs() error {
	if err := d.jobs.AddEvery("sweeper", d.cfg.Matching.SweeperInterval, d.sweeper.Sweep); err != nil {
		return err
	}
	if err := d.jobs.AddEvery("negotiation_expiry", d.cfg.Negotiation.ExpiryInterval, d.expirer.Tick); err != nil {
		return err
	}
	return d.jobs.AddEvery("dedup_purge", dedupPurgeInterval, func(ctx context.Context) error {
		cutoff := d.clock.Now().Add(-d.cfg.Matching.EventDedupTTL)
		_, err := d.processed.PurgeOlderThan(ctx, cutoff)
		return err
	})
}

// serveMetrics exposes the Prometheus endpoint until the context ends
func (d *Daemon) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(d.cfg.Metrics.Path, metrics.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", d.cfg.Metrics.Host, d.cfg.Metrics.Port),
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	d.logger.Info().Str("addr", srv.Addr).Msg("metrics endpoint up")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// InitMetrics registers the Prometheus collectors and installs them as
// the process-wide recorders. Call once before Run when metrics are on.
func InitMetrics() error {
	metrics.InitRegistry()

	engine := metrics.NewEngineMetricsCollector()
	if err := engine.Register(); err != nil {
		return fmt.Errorf("failed to register engine metrics: %w", err)
	}
	metrics.SetGlobalEngineCollector(engine)

	ob := metrics.NewOutboxMetricsCollector()
	if err := ob.Register(); err != nil {
		return fmt.Errorf("failed to register outbox metrics: %w", err)
	}
	metrics.SetGlobalOutboxCollector(ob)

	notif := metrics.NewNotificationMetricsCollector()
	if err := notif.Register(); err != nil {
		return fmt.Errorf("failed to register notification metrics: %w", err)
	}
	metrics.SetGlobalNotificationCollector(notif)
	return nil
}
