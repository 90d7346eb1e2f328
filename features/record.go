package features

import (
	"fmt"
	"os"

	"github.com/dnldd/dayone/shared"
	"github.com/tidwall/gjson"
)

const (
	// Fundamental defaults applied for fields absent from a filing.
	defaultFoundedYear = int64(2020)

	// Deal defaults applied for fields absent from a pricing announcement.
	defaultOfferPrice        = float64(20)
	defaultRangeLow          = float64(18)
	defaultRangeHigh         = float64(22)
	defaultSharesOffered     = float64(10_000_000)
	defaultSharesOutstanding = float64(100_000_000)
	defaultLockupDays        = float64(180)
	defaultGreenshoePct      = float64(15)
	defaultProceedsForGrowth = float64(0.5)

	// Market defaults applied when live market data is unavailable.
	defaultIPOsSameWeek = float64(1)
)

// Fundamentals holds metrics parsed from the summary financial data and MD&A
// sections of an S-1 filing. Monetary fields are raw currency units, ratio
// fields are fractions.
type Fundamentals struct {
	Revenue          float64
	RevenueGrowthYoY float64
	GrossMargin      float64
	OperatingMargin  float64
	NetIncome        float64
	Cash             float64
	DebtToEquity     float64
	Top5CustomerPct  float64
	Employees        float64
	FoundedYear      int64
}

// Deal holds the characteristics of the offering itself.
type Deal struct {
	OfferPrice        float64
	RangeLow          float64
	RangeHigh         float64
	SharesOffered     float64
	SharesOutstanding float64
	LeadUnderwriter   string
	LockupDays        float64
	GreenshoePct      float64
	ProceedsForGrowth float64
}

// Market holds market condition readings at pricing time. Return fields are
// fractions.
type Market struct {
	VolatilityLevel    float64
	BroadReturn30D     float64
	SectorReturn30D    float64
	RecentIPOAvgReturn float64
	IPOsSameWeek       float64
}

// Sentiment holds aggregate pre-listing news and social sentiment readings.
type Sentiment struct {
	Score        float64
	NewsVolume   float64
	Velocity     float64
	SocialBuzz   float64
	GoogleTrends float64
}

// Record is the raw input to feature extraction. Sub-blocks carry documented
// defaults for absent fields so partial filing data never blocks scoring.
type Record struct {
	Fundamentals Fundamentals
	Deal         Deal
	Market       Market
	Sentiment    Sentiment
}

// DefaultFundamentals returns the fundamentals block with all defaults applied.
func DefaultFundamentals() Fundamentals {
	return Fundamentals{FoundedYear: defaultFoundedYear}
}

// DefaultDeal returns the deal block with all defaults applied.
func DefaultDeal() Deal {
	return Deal{
		OfferPrice:        defaultOfferPrice,
		RangeLow:          defaultRangeLow,
		RangeHigh:         defaultRangeHigh,
		SharesOffered:     defaultSharesOffered,
		SharesOutstanding: defaultSharesOutstanding,
		LockupDays:        defaultLockupDays,
		GreenshoePct:      defaultGreenshoePct,
		ProceedsForGrowth: defaultProceedsForGrowth,
	}
}

// DefaultMarket returns the market block with all defaults applied.
func DefaultMarket() Market {
	return Market{
		VolatilityLevel: shared.DefaultVolatilityLevel,
		IPOsSameWeek:    defaultIPOsSameWeek,
	}
}

// DefaultSentiment returns the sentiment block with all defaults applied.
func DefaultSentiment() Sentiment {
	return Sentiment{}
}

// NewRecord returns a record with all block defaults applied.
func NewRecord() *Record {
	return &Record{
		Fundamentals: DefaultFundamentals(),
		Deal:         DefaultDeal(),
		Market:       DefaultMarket(),
		Sentiment:    DefaultSentiment(),
	}
}

// floatOr returns the float at the provided path, or the fallback if the key
// is absent.
func floatOr(data *gjson.Result, path string, fallback float64) float64 {
	v := data.Get(path)
	if !v.Exists() {
		return fallback
	}

	return v.Float()
}

// intOr returns the integer at the provided path, or the fallback if the key
// is absent.
func intOr(data *gjson.Result, path string, fallback int64) int64 {
	v := data.Get(path)
	if !v.Exists() {
		return fallback
	}

	return v.Int()
}

// ParseRecord parses a record from raw filing json. Absent keys fall back to
// their documented defaults, and absence of a whole sub-block is equivalent to
// all of its keys being absent.
func ParseRecord(data *gjson.Result) *Record {
	record := NewRecord()

	record.Fundamentals.Revenue = floatOr(data, "fundamentals.revenue", 0)
	record.Fundamentals.RevenueGrowthYoY = floatOr(data, "fundamentals.revenue_growth_yoy", 0)
	record.Fundamentals.GrossMargin = floatOr(data, "fundamentals.gross_margin", 0)
	record.Fundamentals.OperatingMargin = floatOr(data, "fundamentals.operating_margin", 0)
	record.Fundamentals.NetIncome = floatOr(data, "fundamentals.net_income", 0)
	record.Fundamentals.Cash = floatOr(data, "fundamentals.cash", 0)
	record.Fundamentals.DebtToEquity = floatOr(data, "fundamentals.debt_to_equity", 0)
	record.Fundamentals.Top5CustomerPct = floatOr(data, "fundamentals.top5_customer_pct", 0)
	record.Fundamentals.Employees = floatOr(data, "fundamentals.employees", 0)
	record.Fundamentals.FoundedYear = intOr(data, "fundamentals.founded_year", defaultFoundedYear)

	record.Deal.OfferPrice = floatOr(data, "deal.offer_price", defaultOfferPrice)
	record.Deal.RangeLow = floatOr(data, "deal.range_low", defaultRangeLow)
	record.Deal.RangeHigh = floatOr(data, "deal.range_high", defaultRangeHigh)
	record.Deal.SharesOffered = floatOr(data, "deal.shares_offered", defaultSharesOffered)
	record.Deal.SharesOutstanding = floatOr(data, "deal.shares_outstanding", defaultSharesOutstanding)
	record.Deal.LeadUnderwriter = data.Get("deal.lead_underwriter").String()
	record.Deal.LockupDays = floatOr(data, "deal.lockup_period", defaultLockupDays)
	record.Deal.GreenshoePct = floatOr(data, "deal.greenshoe_pct", defaultGreenshoePct)
	record.Deal.ProceedsForGrowth = floatOr(data, "deal.proceeds_for_growth", defaultProceedsForGrowth)

	record.Market.VolatilityLevel = floatOr(data, "market.vix", shared.DefaultVolatilityLevel)
	record.Market.BroadReturn30D = floatOr(data, "market.spy_return_30d", 0)
	record.Market.SectorReturn30D = floatOr(data, "market.sector_return_30d", 0)
	record.Market.RecentIPOAvgReturn = floatOr(data, "market.recent_ipo_avg_return", 0)
	record.Market.IPOsSameWeek = floatOr(data, "market.ipos_same_week", defaultIPOsSameWeek)

	record.Sentiment.Score = floatOr(data, "sentiment.finbert_score", 0)
	record.Sentiment.NewsVolume = floatOr(data, "sentiment.news_count", 0)
	record.Sentiment.Velocity = floatOr(data, "sentiment.sentiment_trend", 0)
	record.Sentiment.SocialBuzz = floatOr(data, "sentiment.social_buzz", 0)
	record.Sentiment.GoogleTrends = floatOr(data, "sentiment.google_trends", 0)

	return record
}

// LoadRecord loads a record from the filing json at the provided file path.
func LoadRecord(filepath string) (*Record, error) {
	readb, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("reading filing data from file with path '%s': %v", filepath, err)
	}

	data := gjson.ParseBytes(readb)

	return ParseRecord(&data), nil
}
