package shared_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

func TestWorstOf(t *testing.T) {
	assert.Equal(t, shared.DecisionPass, shared.WorstOf())
	assert.Equal(t, shared.DecisionPass, shared.WorstOf(shared.DecisionPass, shared.DecisionPass))
	assert.Equal(t, shared.DecisionWarn, shared.WorstOf(shared.DecisionPass, shared.DecisionWarn))
	assert.Equal(t, shared.DecisionFail, shared.WorstOf(shared.DecisionWarn, shared.DecisionFail, shared.DecisionPass))
}

func TestDecision_WithDetail(t *testing.T) {
	d := shared.Fail("SAME_PAN", "buyer and seller share a tax id").
		WithDetail("tax_id", "ABCDE1234F")

	assert.Equal(t, shared.DecisionFail, d.Status)
	assert.Equal(t, "SAME_PAN", d.Code)
	assert.Equal(t, "ABCDE1234F", d.Details["tax_id"])
	assert.True(t, d.IsBlocking())
}

func TestDecision_WarnIsNotBlocking(t *testing.T) {
	d := shared.Warn("CREDIT_TIGHT", "credit utilisation above threshold")

	assert.Equal(t, shared.DecisionWarn, d.Status)
	assert.False(t, d.IsBlocking())
}
