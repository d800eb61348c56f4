package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBehaviorFallsBackToFree(t *testing.T) {
	def := Behavior(Code("legacy"))
	assert.Equal(t, Behavior(Free), def)
}

func TestCatalogOrdering(t *testing.T) {
	assert.Equal(t, []Code{Basic, Comfort, Warm}, Paid())

	// tiers strictly grow in context depth and verbosity
	prev := Behavior(Free)
	for _, code := range Paid() {
		def := Behavior(code)
		assert.Greater(t, def.HistoryLimit, prev.HistoryLimit, string(code))
		assert.Greater(t, def.MaxTokens, prev.MaxTokens, string(code))
		assert.Greater(t, def.Temperature, prev.Temperature, string(code))
		prev = def
	}
}

func TestSupportIntervals(t *testing.T) {
	assert.Zero(t, Behavior(Free).SupportInterval)
	assert.Zero(t, Behavior(Basic).SupportInterval)
	assert.Equal(t, 48*time.Hour, Behavior(Comfort).SupportInterval)
	assert.Equal(t, 24*time.Hour, Behavior(Warm).SupportInterval)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(Warm))
	assert.False(t, Valid(Code("premium")))
	assert.Equal(t, Warm, Best)
}
