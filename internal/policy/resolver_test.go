package policy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stopkeeper/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestResolver(t *testing.T) {
	def := domain.ProtectionPolicy{Basis: domain.BasisRelative, StopLossPct: dec("0.10")}
	table := map[string]domain.ProtectionPolicy{
		"AAPL": {Basis: domain.BasisRelative, StopLossPct: dec("0.08"), Trail: &domain.TrailRule{TriggerPLPC: dec("0.05"), TrailPercent: dec("8.0")}},
		"TSLA": {Basis: domain.BasisAbsolute, StopPrice: dec("180")},
	}

	r, err := NewResolver(table, def)
	require.NoError(t, err)

	t.Run("explicit entry wins", func(t *testing.T) {
		pol := r.Resolve("AAPL")
		assert.Equal(t, domain.BasisRelative, pol.Basis)
		assert.True(t, pol.StopLossPct.Equal(dec("0.08")))
		require.NotNil(t, pol.Trail)
		assert.True(t, pol.Trail.TrailPercent.Equal(dec("8.0")))
	})

	t.Run("absolute entry", func(t *testing.T) {
		pol := r.Resolve("TSLA")
		assert.Equal(t, domain.BasisAbsolute, pol.Basis)
		assert.True(t, pol.StopPrice.Equal(dec("180")))
		assert.Nil(t, pol.Trail)
	})

	t.Run("unknown symbol falls back to default", func(t *testing.T) {
		pol := r.Resolve("ZZZZ")
		assert.Equal(t, domain.BasisRelative, pol.Basis)
		assert.True(t, pol.StopLossPct.Equal(dec("0.10")))
		assert.Nil(t, pol.Trail)
	})
}

func TestNewResolver_Validation(t *testing.T) {
	def := domain.ProtectionPolicy{Basis: domain.BasisRelative, StopLossPct: dec("0.10")}

	tests := []struct {
		name  string
		table map[string]domain.ProtectionPolicy
		def   domain.ProtectionPolicy
	}{
		{
			name: "invalid default",
			def:  domain.ProtectionPolicy{Basis: domain.BasisRelative, StopLossPct: dec("1.5")},
		},
		{
			name:  "stop_loss_pct out of range",
			table: map[string]domain.ProtectionPolicy{"X": {Basis: domain.BasisRelative, StopLossPct: dec("0")}},
			def:   def,
		},
		{
			name:  "absolute without price",
			table: map[string]domain.ProtectionPolicy{"X": {Basis: domain.BasisAbsolute}},
			def:   def,
		},
		{
			name:  "unknown basis",
			table: map[string]domain.ProtectionPolicy{"X": {Basis: "banana"}},
			def:   def,
		},
		{
			name: "bad trail percent",
			table: map[string]domain.ProtectionPolicy{"X": {
				Basis:       domain.BasisRelative,
				StopLossPct: dec("0.10"),
				Trail:       &domain.TrailRule{TriggerPLPC: dec("0.05"), TrailPercent: dec("100")},
			}},
			def: def,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResolver(tt.table, tt.def)
			assert.Error(t, err)
		})
	}
}
