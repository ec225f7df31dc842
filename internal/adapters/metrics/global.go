package metrics

var (
	// globalEngine is the singleton engine metrics collector
	// Set by SetGlobalEngineCollector() when metrics are enabled
	globalEngine *EngineMetricsCollector

	// globalOutbox is the singleton outbox metrics collector
	globalOutbox *OutboxMetricsCollector

	// globalNotifications is the singleton notification metrics collector
	globalNotifications *NotificationMetricsCollector
)

// SetGlobalEngineCollector installs the engine collector
func SetGlobalEngineCollector(c *EngineMetricsCollector) {
	globalEngine = c
}

// SetGlobalOutboxCollector installs the outbox collector
func SetGlobalOutboxCollector(c *OutboxMetricsCollector) {
	globalOutbox = c
}

// SetGlobalNotificationCollector installs the notification collector
func SetGlobalNotificationCollector(c *NotificationMetricsCollector) {
	globalNotifications = c
}

// RecordQueueDepth records the matching queue depth if metrics are enabled
func RecordQueueDepth(depth int) {
	if globalEngine != nil {
		globalEngine.SetQueueDepth(depth)
	}
}

// RecordMatchingEvent counts one consumed matching event
func RecordMatchingEvent(priority, outcome string) {
	if globalEngine != nil {
		globalEngine.RecordEvent(priority, outcome)
	}
}

// RecordMatchCreated counts one created match
func RecordMatchCreated(riskStatus string, score float64) {
	if globalEngine != nil {
		globalEngine.RecordMatch(riskStatus, score)
	}
}

// RecordAllocationConflict counts one allocation version conflict
func RecordAllocationConflict() {
	if globalEngine != nil {
		globalEngine.RecordAllocationConflict()
	}
}

// RecordMatchingPass records one matching pass duration
func RecordMatchingPass(side string, seconds float64) {
	if globalEngine != nil {
		globalEngine.RecordPass(side, seconds)
	}
}

// RecordOutboxDispatch counts one outbox dispatch attempt
func RecordOutboxDispatch(eventType string, success bool, lagSeconds float64) {
	if globalOutbox != nil {
		globalOutbox.RecordDispatch(eventType, success, lagSeconds)
	}
}

// RecordOutboxDead counts one dead-lettered outbox record
func RecordOutboxDead() {
	if globalOutbox != nil {
		globalOutbox.RecordDead()
	}
}

// SetOutboxPending records the pending outbox record count
func SetOutboxPending(count int64) {
	if globalOutbox != nil {
		globalOutbox.SetPending(count)
	}
}

// RecordNotificationSent counts one delivered notification
func RecordNotificationSent(channel string) {
	if globalNotifications != nil {
		globalNotifications.RecordSent(channel)
	}
}

// RecordNotificationDropped counts one dropped notification
func RecordNotificationDropped(cause string) {
	if globalNotifications != nil {
		globalNotifications.RecordDropped(cause)
	}
}
