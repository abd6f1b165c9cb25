package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntrySigned(t *testing.T) {
	tests := []struct {
		name     string
		entry    *Entry
		expected int64
	}{
		{
			name:     "credit is positive",
			entry:    &Entry{Amount: 100, DrCr: DrCrCredit},
			expected: 100,
		},
		{
			name:     "debit is negative",
			entry:    &Entry{Amount: 100, DrCr: DrCrDebit},
			expected: -100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.entry.Signed())
		})
	}
}

func TestSumSigned(t *testing.T) {
	// +100, -30, +5 => 75
	entries := []*Entry{
		{Amount: 100, DrCr: DrCrCredit},
		{Amount: 30, DrCr: DrCrDebit},
		{Amount: 5, DrCr: DrCrCredit},
	}
	assert.Equal(t, int64(75), SumSigned(entries))
}

func TestSumSignedEmpty(t *testing.T) {
	assert.Equal(t, int64(0), SumSigned(nil))
}

func TestBalancedPair(t *testing.T) {
	debit := &Entry{Amount: 50, DrCr: DrCrDebit}
	credit := &Entry{Amount: 50, DrCr: DrCrCredit}

	assert.True(t, BalancedPair(debit, credit))

	t.Run("amount mismatch", func(t *testing.T) {
		assert.False(t, BalancedPair(debit, &Entry{Amount: 49, DrCr: DrCrCredit}))
	})

	t.Run("same tags", func(t *testing.T) {
		assert.False(t, BalancedPair(credit, credit))
	})

	t.Run("nil entries", func(t *testing.T) {
		assert.False(t, BalancedPair(nil, credit))
		assert.False(t, BalancedPair(debit, nil))
	})
}
