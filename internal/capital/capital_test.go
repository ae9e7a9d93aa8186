package capital

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizePosition(t *testing.T) {
	// 100k at $50.00/contract with $0.35 commission: cost/contract 5000.35,
	// floor(100000/5000.35) = 19 contracts, leftover 4993.35.
	pos, err := SizePosition(100000, 50.0, 0.35, 0)
	require.NoError(t, err)
	assert.Equal(t, 19, pos.Contracts)
	assert.InDelta(t, 95006.65, pos.TotalCost, 1e-9)
	assert.InDelta(t, 6.65, pos.Commission, 1e-9)
	assert.InDelta(t, 4993.35, pos.LeftoverCash, 1e-9)
	assert.InDelta(t, 95.00665, pos.Utilization, 1e-6)
}

func TestSizePosition_MaxContractsCap(t *testing.T) {
	pos, err := SizePosition(100000, 50.0, 0.35, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, pos.Contracts)
	assert.InDelta(t, 25001.75, pos.TotalCost, 1e-9)
	assert.InDelta(t, 74998.25, pos.LeftoverCash, 1e-9)
}

func TestSizePosition_ZeroAffordable(t *testing.T) {
	// Too expensive for a single contract: a valid no-trade outcome, capital
	// carries over untouched.
	pos, err := SizePosition(1000, 50.0, 0.35, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, pos.Contracts)
	assert.Equal(t, 1000.0, pos.LeftoverCash)
	assert.Zero(t, pos.TotalCost)
	assert.Zero(t, pos.Utilization)
}

func TestSizePosition_InvalidInputs(t *testing.T) {
	_, err := SizePosition(0, 50.0, 0.35, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = SizePosition(100000, 0, 0.35, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = SizePosition(-5, 50.0, 0.35, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSizeExit(t *testing.T) {
	proceeds, err := SizeExit(19, 60.0, 0.35)
	require.NoError(t, err)
	assert.InDelta(t, 114000.0, proceeds.Gross, 1e-9)
	assert.InDelta(t, 6.65, proceeds.Commission, 1e-9)
	assert.InDelta(t, 113993.35, proceeds.Net, 1e-9)
}

func TestSizeExit_WorthlessContract(t *testing.T) {
	// A zero exit price is a real fill (expired worthless); commission still due.
	proceeds, err := SizeExit(3, 0.0, 0.35)
	require.NoError(t, err)
	assert.Zero(t, proceeds.Gross)
	assert.InDelta(t, -1.05, proceeds.Net, 1e-9)
}

func TestSizeExit_InvalidContracts(t *testing.T) {
	_, err := SizeExit(0, 60.0, 0.35)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCompound(t *testing.T) {
	pos, err := SizePosition(100000, 50.0, 0.35, 0)
	require.NoError(t, err)
	exit, err := SizeExit(pos.Contracts, 60.0, 0.35)
	require.NoError(t, err)

	assert.InDelta(t, 118986.70, Compound(exit, pos), 1e-9)
}
