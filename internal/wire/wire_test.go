package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNew_RoundTrip(t *testing.T) {
	msg := "NEW PT 42 B L 100.500000 1.250000"
	o, err := ParseNew(msg)
	require.NoError(t, err)
	assert.Equal(t, "PT", o.ClientID)
	assert.Equal(t, uint64(42), o.OrderID)
	assert.Equal(t, byte('B'), o.Side)
	assert.Equal(t, byte('L'), o.Kind)
	assert.Equal(t, 100.5, o.Price)
	assert.Equal(t, 1.25, o.Qty)
	assert.Equal(t, msg, o.Serialize())
}

func TestParseNew_WrongFieldCount(t *testing.T) {
	_, err := ParseNew("NEW PT 42 B L 100.5")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseNew_BadSide(t *testing.T) {
	_, err := ParseNew("NEW PT 42 X L 100.5 1.0")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseCancel_RoundTrip(t *testing.T) {
	c, err := ParseCancel("CXL PT 7")
	require.NoError(t, err)
	assert.Equal(t, "PT", c.ClientID)
	assert.Equal(t, uint64(7), c.OrderID)
	assert.Equal(t, "CXL PT 7", c.Serialize())
}

func TestParseTick_RoundTrip(t *testing.T) {
	msg := "TICK EXA BTC 100.10 100.20 5 1000"
	tick, err := ParseTick(msg)
	require.NoError(t, err)
	assert.Equal(t, "EXA", tick.ExchID)
	assert.Equal(t, uint64(5), tick.Seq)
	assert.Equal(t, int64(1000), tick.TsNs)
	assert.Equal(t, msg, tick.Serialize())
}

func TestParseFill_RoundTrip(t *testing.T) {
	msg := "FILL EXA BTC 100.500000 0.250000 PT 10 BG_EXA 11 123456"
	fill, err := ParseFill(msg)
	require.NoError(t, err)
	assert.Equal(t, "PT", fill.TakerClientID)
	assert.Equal(t, uint64(10), fill.TakerOrderID)
	assert.Equal(t, "BG_EXA", fill.MakerClientID)
	assert.Equal(t, uint64(11), fill.MakerOrderID)
	assert.Equal(t, msg, fill.Serialize())
}

func TestParseTrade_RoundTrip(t *testing.T) {
	msg := "TRADE STRAT1 EXA BUY 100.000000 EXB SELL 101.000000 1.000000 1.000000 999"
	tr, err := ParseTrade(msg)
	require.NoError(t, err)
	assert.Equal(t, "STRAT1", tr.StrategyID)
	assert.Equal(t, "EXA", tr.LegAExch)
	assert.Equal(t, "BUY", tr.LegASide)
	assert.Equal(t, "EXB", tr.LegBExch)
	assert.Equal(t, "SELL", tr.LegBSide)
	assert.Equal(t, 1.0, tr.Size)
	assert.Equal(t, msg, tr.Serialize())
}

func TestParseTrade_WrongFieldCount(t *testing.T) {
	_, err := ParseTrade("TRADE STRAT1 EXA BUY 100")
	assert.ErrorIs(t, err, ErrMalformed)
}
