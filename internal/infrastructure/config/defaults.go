package config

import "time"

// SetDefaults sets default values for all configuration fields
func SetDefaults(cfg *Config) {
	// Database defaults
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "tradecore"
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "tradecore"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Pool.MaxOpen == 0 {
		cfg.Database.Pool.MaxOpen = 25
	}
	if cfg.Database.Pool.MaxIdle == 0 {
		cfg.Database.Pool.MaxIdle = 5
	}
	if cfg.Database.Pool.MaxLifetime == 0 {
		cfg.Database.Pool.MaxLifetime = 5 * time.Minute
	}

	// Matching defaults
	if cfg.Matching.MaxInFlight == 0 {
		cfg.Matching.MaxInFlight = 50
	}
	if cfg.Matching.TopN == 0 {
		cfg.Matching.TopN = 5
	}
	if cfg.Matching.CoalesceDelay == 0 {
		cfg.Matching.CoalesceDelay = 2 * time.Second
	}
	if cfg.Matching.SweeperInterval == 0 {
		cfg.Matching.SweeperInterval = 30 * time.Second
	}
	if cfg.Matching.SweeperStaleAfter == 0 {
		cfg.Matching.SweeperStaleAfter = 1 * time.Minute
	}
	if cfg.Matching.QueueDepthLimit == 0 {
		cfg.Matching.QueueDepthLimit = 10000
	}
	if cfg.Matching.AllocationRetries == 0 {
		cfg.Matching.AllocationRetries = 3
	}
	if cfg.Matching.AllocationBackoffBase == 0 {
		cfg.Matching.AllocationBackoffBase = 50 * time.Millisecond
	}
	if cfg.Matching.SuppressionWindow == 0 {
		cfg.Matching.SuppressionWindow = 5 * time.Minute
	}
	if cfg.Matching.SuppressionSimilarity == 0 {
		cfg.Matching.SuppressionSimilarity = 0.95
	}
	if cfg.Matching.EventDedupTTL == 0 {
		cfg.Matching.EventDedupTTL = 24 * time.Hour
	}
	if cfg.Matching.MaxDeliveryKm == 0 {
		cfg.Matching.MaxDeliveryKm = 50
	}

	// Risk defaults
	if cfg.Risk.HighValueThreshold == 0 {
		cfg.Risk.HighValueThreshold = 1_000_000
	}
	if cfg.Risk.AdvisoryConfidenceFloor == 0 {
		cfg.Risk.AdvisoryConfidenceFloor = 0.6
	}

	// Scoring defaults
	if cfg.Scoring.Default.Weights == (ScoreWeights{}) {
		cfg.Scoring.Default.Weights = ScoreWeights{
			Quality:  0.40,
			Price:    0.30,
			Delivery: 0.15,
			Risk:     0.15,
		}
	}
	if cfg.Scoring.Default.MinScore == 0 {
		cfg.Scoring.Default.MinScore = 0.5
	}
	if cfg.Scoring.WarnPenalty == 0 {
		cfg.Scoring.WarnPenalty = 0.9
	}
	if cfg.Scoring.AIBoost == 0 {
		cfg.Scoring.AIBoost = 1.05
	}

	// Negotiation defaults
	if cfg.Negotiation.TTL == 0 {
		cfg.Negotiation.TTL = 72 * time.Hour
	}
	if cfg.Negotiation.ExpiryInterval == 0 {
		cfg.Negotiation.ExpiryInterval = 1 * time.Minute
	}

	// Notification defaults
	if cfg.Notification.DebounceWindow == 0 {
		cfg.Notification.DebounceWindow = 1 * time.Minute
	}
	if cfg.Notification.TopNWindow == 0 {
		cfg.Notification.TopNWindow = 5 * time.Minute
	}
	if cfg.Notification.RatePerMinute == 0 {
		cfg.Notification.RatePerMinute = 1
	}
	if cfg.Notification.Burst == 0 {
		cfg.Notification.Burst = 1
	}
	if cfg.Notification.FanoutTimeout == 0 {
		cfg.Notification.FanoutTimeout = 10 * time.Second
	}

	// Outbox defaults
	if cfg.Outbox.PollInterval == 0 {
		cfg.Outbox.PollInterval = 500 * time.Millisecond
	}
	if cfg.Outbox.BatchSize == 0 {
		cfg.Outbox.BatchSize = 50
	}
	if cfg.Outbox.PublishTimeout == 0 {
		cfg.Outbox.PublishTimeout = 3 * time.Second
	}

	// Metrics defaults
	if cfg.Metrics.Host == "" {
		cfg.Metrics.Host = "localhost"
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9190
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Daemon defaults
	if cfg.Daemon.PIDFile == "" {
		cfg.Daemon.PIDFile = "/tmp/tradecored.pid"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}
