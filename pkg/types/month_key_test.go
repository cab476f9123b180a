package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonthKey(t *testing.T) {
	valid := []string{"2024-01", "2024-12", " 1999-07 "}
	for _, raw := range valid {
		_, err := ParseMonthKey(raw)
		assert.NoError(t, err, raw)
	}

	invalid := []string{"", "2024-13", "2024-00", "2024-1", "24-01", "2024/01", "2024-01-01", "janvier"}
	for _, raw := range invalid {
		_, err := ParseMonthKey(raw)
		assert.Error(t, err, raw)
	}
}

func TestMonthKeyBounds(t *testing.T) {
	key, err := ParseMonthKey("2024-12")
	require.NoError(t, err)

	start, end, err := key.Bounds()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestMonthKeyOf(t *testing.T) {
	paris := time.FixedZone("CET", 3600)
	at := time.Date(2024, 3, 1, 0, 30, 0, 0, paris)
	assert.Equal(t, MonthKey("2024-02"), MonthKeyOf(at))
}
