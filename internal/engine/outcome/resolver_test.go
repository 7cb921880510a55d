package outcome

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveIsDeterministic(t *testing.T) {
	entropy := new(big.Int).SetUint64(0xdeadbeefcafe)

	out1, win1 := Resolve(entropy, 37, 1<<14, 0, false)
	out2, win2 := Resolve(entropy, 37, 1<<14, 0, false)
	assert.Equal(t, out1, out2)
	assert.Equal(t, win1, win2)
}

func TestResolveMaskBet(t *testing.T) {
	// 11 mod 6 = 5
	entropy := big.NewInt(11)

	out, win := Resolve(entropy, 6, 1<<5, 0, false)
	assert.Equal(t, int64(5), out)
	assert.True(t, win)

	// mesma entropia, máscara sem o bit 5
	_, win = Resolve(entropy, 6, 1<<3|1<<4, 0, false)
	assert.False(t, win)
}

func TestResolveMaskMultipleOutcomes(t *testing.T) {
	mask := uint64(1<<0 | 1<<2 | 1<<4) // pares no dado

	out, win := Resolve(big.NewInt(4), 6, mask, 0, false)
	assert.Equal(t, int64(4), out)
	assert.True(t, win)

	out, win = Resolve(big.NewInt(3), 6, mask, 0, false)
	assert.Equal(t, int64(3), out)
	assert.False(t, win)
}

func TestResolveEdgeBet(t *testing.T) {
	out, win := Resolve(big.NewInt(75), 100, 0, 50, true)
	assert.Equal(t, int64(75), out)
	assert.True(t, win)

	_, win = Resolve(big.NewInt(25), 100, 0, 50, true)
	assert.False(t, win)

	_, win = Resolve(big.NewInt(25), 100, 0, 50, false)
	assert.True(t, win)
}

func TestResolveEdgeBoundaryLoses(t *testing.T) {
	// resultado exatamente no limiar perde nas duas direções
	_, win := Resolve(big.NewInt(50), 100, 0, 50, true)
	assert.False(t, win)

	_, win = Resolve(big.NewInt(50), 100, 0, 50, false)
	assert.False(t, win)
}

func TestResolveReducesLargeEntropy(t *testing.T) {
	entropy, ok := new(big.Int).SetString(
		"f0e1d2c3b4a5968778695a4b3c2d1e0ff0e1d2c3b4a5968778695a4b3c2d1e0f", 16)
	assert.True(t, ok)

	out, _ := Resolve(entropy, 37, 1, 0, false)
	assert.GreaterOrEqual(t, out, int64(0))
	assert.Less(t, out, int64(37))
}
