package features

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/peterldowns/testy/assert"
)

var extractionClock = time.Date(2024, 12, 10, 10, 30, 0, 0, time.UTC)

func TestExtractShape(t *testing.T) {
	record := NewRecord()

	// Ensure the vector and name list lengths always agree.
	features := Extract(record, extractionClock)
	names := FeatureNames()

	assert.Equal(t, len(features), FeatureCount)
	assert.Equal(t, len(names), FeatureCount)

	// Ensure the block sizes partition the vector.
	assert.Equal(t, fundamentalFeatureCount+dealFeatureCount+marketFeatureCount+sentimentFeatureCount, FeatureCount)

	// Ensure the block boundaries line up with the canonical names.
	assert.Equal(t, names[0], "revenue_mm")
	assert.Equal(t, names[fundamentalFeatureCount], "price_vs_range")
	assert.Equal(t, names[fundamentalFeatureCount+dealFeatureCount], "vix")
	assert.Equal(t, names[fundamentalFeatureCount+dealFeatureCount+marketFeatureCount], "finbert_score")
	assert.Equal(t, names[FeatureCount-1], "google_trends")
}

func TestExtractDefaults(t *testing.T) {
	record := NewRecord()

	// Ensure an all-default record extracts without error and yields the
	// documented default vector.
	features := Extract(record, extractionClock)

	want := []float64{
		// Fundamentals.
		0, 0, 0, 0, 0, 0, 0, 0, 0, float64(extractionClock.Year() - 2020),
		// Deal: range midpoint 20 leaves price_vs_range at 0, the default
		// float is 10m of 100m shares, zero revenue guards price_to_sales to 0.
		0, 10, 0, 0, 180, 15, 0.5, 0,
		// Market.
		15, 0, 0, 0, 1,
		// Sentiment.
		0, 0, 0, 0, 0,
	}

	diff := cmp.Diff(want, features, cmpopts.EquateApprox(0, 1e-9))
	assert.Equal(t, diff, "")
}

func TestIsProfitable(t *testing.T) {
	record := NewRecord()

	// Ensure zero net income counts as not profitable.
	record.Fundamentals.NetIncome = 0
	features := Extract(record, extractionClock)
	assert.Equal(t, features[4], float64(0))

	// Ensure negative net income counts as not profitable.
	record.Fundamentals.NetIncome = -5_000_000
	features = Extract(record, extractionClock)
	assert.Equal(t, features[4], float64(0))

	// Ensure strictly positive net income counts as profitable.
	record.Fundamentals.NetIncome = 1
	features = Extract(record, extractionClock)
	assert.Equal(t, features[4], float64(1))
}

func TestCompanyAge(t *testing.T) {
	record := NewRecord()

	// Ensure a future founding year yields a negative age.
	record.Fundamentals.FoundedYear = int64(extractionClock.Year() + 2)
	features := Extract(record, extractionClock)
	assert.Equal(t, features[9], float64(-2))
}

func TestPriceVsRange(t *testing.T) {
	record := NewRecord()

	// Ensure pricing above the range midpoint yields a positive deviation.
	record.Deal.OfferPrice = 25
	record.Deal.RangeLow = 18
	record.Deal.RangeHigh = 22
	features := Extract(record, extractionClock)
	assert.Equal(t, features[10], 25.0)

	// Ensure the derived subscription level follows the deviation.
	assert.Equal(t, features[17], 2.5)

	// Ensure a zero range midpoint resolves to 0 instead of an infinity.
	record.Deal.RangeLow = 0
	record.Deal.RangeHigh = 0
	features = Extract(record, extractionClock)
	assert.Equal(t, features[10], float64(0))
	assert.Equal(t, features[17], float64(0))
}

func TestPriceToSales(t *testing.T) {
	record := NewRecord()
	record.Deal.OfferPrice = 68
	record.Deal.SharesOutstanding = 600_000_000

	// Ensure non-positive revenue guards the ratio to 0.
	record.Fundamentals.Revenue = 0
	features := Extract(record, extractionClock)
	assert.Equal(t, features[12], float64(0))

	record.Fundamentals.Revenue = -1
	features = Extract(record, extractionClock)
	assert.Equal(t, features[12], float64(0))

	// Ensure positive revenue yields market cap over revenue.
	record.Fundamentals.Revenue = 4_080_000_000
	features = Extract(record, extractionClock)
	assert.Equal(t, features[12], float64(10))
}

func TestUnderwriterTier(t *testing.T) {
	record := NewRecord()

	// Ensure the match is a case-insensitive substring check.
	record.Deal.LeadUnderwriter = "Goldman Sachs & Co."
	features := Extract(record, extractionClock)
	assert.Equal(t, features[13], float64(1))

	record.Deal.LeadUnderwriter = "J.P. Morgan Securities"
	features = Extract(record, extractionClock)
	assert.Equal(t, features[13], float64(0))

	record.Deal.LeadUnderwriter = "JPMorgan Chase"
	features = Extract(record, extractionClock)
	assert.Equal(t, features[13], float64(1))

	// Ensure an unknown underwriter maps to tier 0.
	record.Deal.LeadUnderwriter = "Example Securities LLC"
	features = Extract(record, extractionClock)
	assert.Equal(t, features[13], float64(0))
}

func TestScalingAndFloat(t *testing.T) {
	record := NewRecord()
	record.Fundamentals.Revenue = 4_080_000_000
	record.Fundamentals.Cash = 250_000_000
	record.Fundamentals.RevenueGrowthYoY = 0.25
	record.Fundamentals.GrossMargin = 0.75
	record.Fundamentals.OperatingMargin = -0.125
	record.Fundamentals.Top5CustomerPct = 0.5
	record.Deal.SharesOffered = 51_750_000
	record.Deal.SharesOutstanding = 600_000_000

	features := Extract(record, extractionClock)

	// Ensure currency fields scale to millions.
	assert.Equal(t, features[0], float64(4080))
	assert.Equal(t, features[5], float64(250))

	// Ensure fraction fields scale to percentages.
	assert.Equal(t, features[1], float64(25))
	assert.Equal(t, features[2], float64(75))
	assert.Equal(t, features[3], -12.5)
	assert.Equal(t, features[7], float64(50))

	// Ensure the float percentage derives from shares offered over outstanding.
	assert.True(t, math.Abs(features[11]-8.625) < 1e-9)
}
