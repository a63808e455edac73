package laboratory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricingEntry_ResolveUnitPrice(t *testing.T) {
	tests := []struct {
		name     string
		entry    PricingEntry
		revenue  decimal.Decimal
		expected decimal.Decimal
	}{
		{
			name:     "fixed price unchanged",
			entry:    PricingEntry{Name: "Crown", Price: decimal.NewFromInt(2400)},
			revenue:  decimal.NewFromInt(99999),
			expected: decimal.NewFromInt(2400),
		},
		{
			name:     "30 percent of 10000",
			entry:    PricingEntry{Name: "Aligner stage", Price: decimal.NewFromInt(30), IsPercentage: true},
			revenue:  decimal.NewFromInt(10000),
			expected: decimal.NewFromInt(3000),
		},
		{
			name:     "rounds half up",
			entry:    PricingEntry{Name: "Share", Price: decimal.NewFromInt(15), IsPercentage: true},
			revenue:  decimal.NewFromInt(1010), // 151.5 -> 152
			expected: decimal.NewFromInt(152),
		},
		{
			name:     "zero revenue",
			entry:    PricingEntry{Name: "Share", Price: decimal.NewFromInt(30), IsPercentage: true},
			revenue:  decimal.Zero,
			expected: decimal.Zero,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.entry.ResolveUnitPrice(tc.revenue)
			assert.True(t, tc.expected.Equal(got), "expected %s got %s", tc.expected, got)
		})
	}
}

func TestPricingEntry_SnapshotSemantics(t *testing.T) {
	entry := PricingEntry{Name: "Share", Price: decimal.NewFromInt(30), IsPercentage: true}
	snapshot := entry.ResolveUnitPrice(decimal.NewFromInt(10000))
	require.True(t, decimal.NewFromInt(3000).Equal(snapshot))

	// Changing the rate afterwards does not affect the already-taken value.
	entry.Price = decimal.NewFromInt(50)
	assert.True(t, decimal.NewFromInt(3000).Equal(snapshot))
}

func TestPricingEntry_Validate(t *testing.T) {
	assert.NoError(t, PricingEntry{Name: "Crown", Price: decimal.NewFromInt(100)}.Validate())
	assert.Error(t, PricingEntry{Name: "", Price: decimal.NewFromInt(100)}.Validate())
	assert.Error(t, PricingEntry{Name: "X", Price: decimal.NewFromInt(-1)}.Validate())
	assert.Error(t, PricingEntry{Name: "X", Price: decimal.NewFromInt(120), IsPercentage: true}.Validate())
}

func TestNewLaboratory(t *testing.T) {
	clinicID := uuid.New()

	t.Run("creates active lab", func(t *testing.T) {
		lab, err := NewLaboratory(clinicID, "Apex Dental Lab")
		require.NoError(t, err)
		assert.True(t, lab.Active)
		assert.Equal(t, clinicID, lab.ClinicID)
		assert.Empty(t, lab.PricingEntries)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := NewLaboratory(clinicID, "")
		assert.Error(t, err)
	})
}

func TestLaboratory_PricingEntryManagement(t *testing.T) {
	lab, err := NewLaboratory(uuid.New(), "Apex")
	require.NoError(t, err)

	entry, err := lab.AddPricingEntry("Crown", decimal.NewFromInt(2400), false)
	require.NoError(t, err)
	require.Len(t, lab.PricingEntries, 1)

	t.Run("find", func(t *testing.T) {
		found, ok := lab.FindPricingEntry(entry.ID)
		require.True(t, ok)
		assert.Equal(t, "Crown", found.Name)
	})

	t.Run("update", func(t *testing.T) {
		require.NoError(t, lab.UpdatePricingEntry(entry.ID, "Crown PFM", decimal.NewFromInt(2000), false))
		found, ok := lab.FindPricingEntry(entry.ID)
		require.True(t, ok)
		assert.Equal(t, "Crown PFM", found.Name)
	})

	t.Run("update missing entry", func(t *testing.T) {
		assert.Error(t, lab.UpdatePricingEntry(uuid.New(), "X", decimal.Zero, false))
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, lab.RemovePricingEntry(entry.ID))
		assert.Empty(t, lab.PricingEntries)
		assert.Error(t, lab.RemovePricingEntry(entry.ID))
	})
}
