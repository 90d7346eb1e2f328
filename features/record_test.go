package features

import (
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/tidwall/gjson"
)

func TestParseRecordDefaults(t *testing.T) {
	// Ensure an empty document yields the full default record.
	data := gjson.Parse(`{}`)
	record := ParseRecord(&data)

	assert.Equal(t, record.Fundamentals, DefaultFundamentals())
	assert.Equal(t, record.Deal, DefaultDeal())
	assert.Equal(t, record.Market, DefaultMarket())
	assert.Equal(t, record.Sentiment, DefaultSentiment())
}

func TestParseRecordPartialBlocks(t *testing.T) {
	// Ensure present keys override defaults while absent keys within the same
	// block keep theirs.
	data := gjson.Parse(`{
		"fundamentals": {"revenue": 4080000000, "net_income": 120000000},
		"deal": {"offer_price": 68, "shares_offered": 51750000, "shares_outstanding": 600000000}
	}`)
	record := ParseRecord(&data)

	assert.Equal(t, record.Fundamentals.Revenue, float64(4_080_000_000))
	assert.Equal(t, record.Fundamentals.NetIncome, float64(120_000_000))
	assert.Equal(t, record.Fundamentals.FoundedYear, int64(2020))

	assert.Equal(t, record.Deal.OfferPrice, float64(68))
	assert.Equal(t, record.Deal.SharesOffered, float64(51_750_000))
	assert.Equal(t, record.Deal.SharesOutstanding, float64(600_000_000))
	assert.Equal(t, record.Deal.RangeLow, float64(18))
	assert.Equal(t, record.Deal.RangeHigh, float64(22))
	assert.Equal(t, record.Deal.LockupDays, float64(180))

	// Ensure absent blocks keep all their defaults.
	assert.Equal(t, record.Market, DefaultMarket())
	assert.Equal(t, record.Sentiment, DefaultSentiment())
}

func TestParseRecordExplicitZeros(t *testing.T) {
	// Ensure an explicit zero is honored rather than replaced by a default.
	data := gjson.Parse(`{"deal": {"range_low": 0, "range_high": 0}, "market": {"vix": 0}}`)
	record := ParseRecord(&data)

	assert.Equal(t, record.Deal.RangeLow, float64(0))
	assert.Equal(t, record.Deal.RangeHigh, float64(0))
	assert.Equal(t, record.Market.VolatilityLevel, float64(0))
}

func TestLoadRecordMissingFile(t *testing.T) {
	// Ensure a missing filing file errors rather than yielding a record.
	_, err := LoadRecord("testdata/does-not-exist.json")
	assert.Error(t, err)
}
