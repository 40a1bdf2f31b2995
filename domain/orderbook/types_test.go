package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderTypeNames(t *testing.T) {
	for typ, want := range map[OrderType]string{
		Limit:             "LIMIT",
		ImmediateOrCancel: "IOC",
		FillOrKill:        "FOK",
		PostOnlyOrder:     "POST_ONLY",
		MarketOrder:       "MARKET",
	} {
		assert.Equal(t, want, typ.String())
		assert.True(t, typ.valid())
	}
	assert.False(t, (MarketOrder + 1).valid())
	assert.True(t, PostOnlyOrder.mayRest())
	assert.False(t, MarketOrder.mayRest())

	// a Market is the struct; the order type must not shadow it
	var m Market
	assert.Empty(t, m.Name)
	assert.Equal(t, "POST_ONLY", PostOnly.String())
	assert.Equal(t, "UNKNOWN", CompletedReason(255).String())
}
