package trade_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/domain/trade"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newMatch(t *testing.T) *trade.Match {
	t.Helper()
	m, err := trade.NewMatch(
		"MTC-1", "REQ-1", "AVL-1", "BP-BUYER", "BP-SELLER",
		shared.QuantityFromFloat(50), 0.82,
		trade.ScoreBreakdown{Quality: 1, Price: 0.9, Delivery: 0.7, Risk: 1},
		shared.Pass(), testNow,
	)
	require.NoError(t, err)
	return m
}

func TestNewMatch_Validation(t *testing.T) {
	// Same party on both sides
	_, err := trade.NewMatch("MTC-1", "REQ-1", "AVL-1", "BP-1", "BP-1",
		shared.QuantityFromFloat(10), 0.8, trade.ScoreBreakdown{}, shared.Pass(), testNow)
	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)

	// Zero allocation
	_, err = trade.NewMatch("MTC-1", "REQ-1", "AVL-1", "BP-1", "BP-2",
		shared.ZeroQuantity(), 0.8, trade.ScoreBreakdown{}, shared.Pass(), testNow)
	require.ErrorAs(t, err, &validationErr)

	// Failed risk decisions never form matches
	_, err = trade.NewMatch("MTC-1", "REQ-1", "AVL-1", "BP-1", "BP-2",
		shared.QuantityFromFloat(10), 0.8, trade.ScoreBreakdown{},
		shared.Fail("SANCTIONS", "restricted corridor"), testNow)
	require.ErrorAs(t, err, &validationErr)
}

func TestNewMatch_CarriesWarnDecision(t *testing.T) {
	warn := shared.Warn("CREDIT_TIGHT", "high utilisation").WithDetail("utilisation", "0.93")

	m, err := trade.NewMatch("MTC-1", "REQ-1", "AVL-1", "BP-1", "BP-2",
		shared.QuantityFromFloat(10), 0.6, trade.ScoreBreakdown{}, warn, testNow)

	require.NoError(t, err)
	assert.Equal(t, shared.DecisionWarn, m.RiskDecision)
	assert.Equal(t, "CREDIT_TIGHT", m.RiskCode)
	assert.Equal(t, "0.93", m.RiskDetails["utilisation"])
}

func TestMatch_Lifecycle(t *testing.T) {
	m := newMatch(t)
	assert.Equal(t, trade.MatchProposed, m.Status)
	assert.True(t, m.IsActive())

	require.NoError(t, m.MarkNotified())
	require.NoError(t, m.AcceptByBuyer())
	require.NoError(t, m.EnterNegotiation())
	require.NoError(t, m.Conclude())

	assert.Equal(t, trade.MatchConcluded, m.Status)
	assert.True(t, m.IsTerminal())
	assert.False(t, m.IsActive())
}

func TestMatch_AcceptByBuyer_SkippingNotifyIsAllowed(t *testing.T) {
	m := newMatch(t)
	require.NoError(t, m.AcceptByBuyer())
	assert.Equal(t, trade.MatchAcceptedByBuyer, m.Status)
}

func TestMatch_TerminalStatesAreFinal(t *testing.T) {
	m := newMatch(t)
	require.NoError(t, m.Reject())

	var terminalErr *shared.TerminalStateError
	require.ErrorAs(t, m.Conclude(), &terminalErr)
	require.ErrorAs(t, m.AcceptByBuyer(), &terminalErr)

	// Expire on a terminal match is a no-op
	m.Expire()
	assert.Equal(t, trade.MatchRejected, m.Status)
}

func TestMatch_MarkNotified_OnlyFromProposed(t *testing.T) {
	m := newMatch(t)
	require.NoError(t, m.AcceptByBuyer())

	var terminalErr *shared.TerminalStateError
	require.ErrorAs(t, m.MarkNotified(), &terminalErr)
}
