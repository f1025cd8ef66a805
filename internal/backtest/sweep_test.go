package backtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridbot/internal/grid"
)

func TestParseSweepOverlaysBase(t *testing.T) {
	raw := []byte(`
- grid_count: 20
- mode: arithmetic
  leverage: 2
  max_drawdown_pct: 0.1
`)
	runs, err := ParseSweep(raw, baseConfig())
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, 20, runs[0].GridCount)
	assert.Equal(t, grid.ModeGeometric, runs[0].Mode)
	assert.Equal(t, "BTCUSDT", runs[0].Symbol)

	assert.Equal(t, grid.ModeArithmetic, runs[1].Mode)
	assert.Equal(t, 2.0, runs[1].Leverage)
	assert.Equal(t, 0.1, runs[1].MaxDrawdownPct)
	assert.Zero(t, runs[1].GridCount)
	assert.Equal(t, 10000.0, runs[1].InitialCash)
}

func TestParseSweepRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"misspelled key", "- grid_count: 10\n- grid_cout: 20\n", "grid_cout"},
		{"unknown mode", "- mode: fibonacci\n", "run 0"},
		{"non-positive cash", "- initial_cash: 0\n", "run 0"},
		{"leverage below one", "- leverage: 0.5\n", "run 0"},
		{"fractional grid count", "- grid_count: 2.5\n", "run 0"},
		{"scalar entry", "- 42\n", "run 0"},
		{"empty list", "[]\n", "no runs"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSweep([]byte(tc.raw), baseConfig())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadSweepFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- grid_count: 8\n"), 0o644))
	runs, err := LoadSweepFile(path, baseConfig())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 8, runs[0].GridCount)

	_, err = LoadSweepFile(filepath.Join(t.TempDir(), "missing.yaml"), baseConfig())
	assert.Error(t, err)
}
