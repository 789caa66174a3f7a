package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimezone(t *testing.T) {
	loc, err := ParseTimezone("Europe/Berlin")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	loc, err = ParseTimezone("")
	require.NoError(t, err)
	assert.Equal(t, UTC, loc)

	loc, err = ParseTimezone("Not/AZone")
	require.Error(t, err)
	assert.Equal(t, UTC, loc)
}

func TestIsValidTimezone(t *testing.T) {
	assert.True(t, IsValidTimezone("UTC"))
	assert.True(t, IsValidTimezone("Asia/Tokyo"))
	assert.False(t, IsValidTimezone("Mars/Olympus_Mons"))
}

func TestCatalogZonesAreValid(t *testing.T) {
	catalog := Catalog()
	require.NotEmpty(t, catalog)
	for _, zone := range catalog {
		assert.True(t, IsValidTimezone(zone), "catalog zone %q must load", zone)
	}
}

func TestFormatHelpers(t *testing.T) {
	ts := time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "14.03.2025", FormatDate(ts))
	assert.Equal(t, "09:30", FormatClock(ts))
}
