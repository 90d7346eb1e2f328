package features

import (
	"math"
	"strings"
	"time"
)

const (
	// FeatureCount is the fixed length of an extracted feature vector.
	FeatureCount = 28

	// Block sizes, in extraction order.
	fundamentalFeatureCount = 10
	dealFeatureCount        = 8
	marketFeatureCount      = 5
	sentimentFeatureCount   = 5

	// millions scales raw currency fields for output.
	millions = 1e6
)

// bulgeBracketFragments are lowercase lead-underwriter name fragments marking
// a tier-one syndicate.
var bulgeBracketFragments = []string{
	"goldman", "morgan stanley", "jpmorgan", "jp morgan",
	"bank of america", "citigroup", "barclays", "credit suisse",
}

// featureNames are the canonical feature names, positionally aligned with the
// output of Extract.
var featureNames = []string{
	// Fundamentals (10).
	"revenue_mm", "revenue_growth_yoy", "gross_margin", "operating_margin",
	"is_profitable", "cash_mm", "debt_to_equity", "customer_concentration",
	"employees", "company_age",

	// Deal characteristics (8).
	"price_vs_range", "float_pct", "price_to_sales", "underwriter_tier",
	"lockup_days", "greenshoe_pct", "proceeds_for_growth", "subscription_level",

	// Market conditions (5).
	"vix", "spy_return_30d", "sector_return_30d", "ipo_market_temp", "ipos_same_week",

	// Sentiment (5).
	"finbert_score", "news_volume", "sentiment_velocity", "social_buzz", "google_trends",
}

// FeatureNames returns the canonical feature names in extraction order.
func FeatureNames() []string {
	names := make([]string, len(featureNames))
	copy(names, featureNames)

	return names
}

// fundamentalFeatures derives the fundamental block from the filing data.
func fundamentalFeatures(f *Fundamentals, now time.Time) []float64 {
	isProfitable := float64(0)
	if f.NetIncome > 0 {
		isProfitable = 1
	}

	// Company age is intentionally unfloored, a future founding year yields a
	// negative age.
	companyAge := float64(int64(now.Year()) - f.FoundedYear)

	return []float64{
		f.Revenue / millions,
		f.RevenueGrowthYoY * 100,
		f.GrossMargin * 100,
		f.OperatingMargin * 100,
		isProfitable,
		f.Cash / millions,
		f.DebtToEquity,
		f.Top5CustomerPct * 100,
		f.Employees,
		companyAge,
	}
}

// priceVsRange derives the offer price's percentage deviation from the filing
// range midpoint. A zero midpoint resolves to 0 rather than propagating an
// infinity.
func priceVsRange(d *Deal) float64 {
	midpoint := (d.RangeLow + d.RangeHigh) / 2
	if midpoint == 0 {
		return 0
	}

	return ((d.OfferPrice - midpoint) / midpoint) * 100
}

// dealFeatures derives the deal characteristics block from the pricing data.
func dealFeatures(d *Deal, f *Fundamentals) []float64 {
	pvr := priceVsRange(d)

	var floatPct float64
	if d.SharesOutstanding != 0 {
		floatPct = (d.SharesOffered / d.SharesOutstanding) * 100
	}

	// Price to sales resolves to 0 for non-positive revenue.
	var priceToSales float64
	if f.Revenue > 0 {
		priceToSales = (d.OfferPrice * d.SharesOutstanding) / f.Revenue
	}

	underwriterTier := float64(0)
	leadUnderwriter := strings.ToLower(d.LeadUnderwriter)
	for idx := range bulgeBracketFragments {
		if strings.Contains(leadUnderwriter, bulgeBracketFragments[idx]) {
			underwriterTier = 1
			break
		}
	}

	// Strong pricing relative to the range proxies for oversubscription.
	subscriptionLevel := math.Max(0, pvr/10)

	return []float64{
		pvr,
		floatPct,
		priceToSales,
		underwriterTier,
		d.LockupDays,
		d.GreenshoePct,
		d.ProceedsForGrowth,
		subscriptionLevel,
	}
}

// marketFeatures derives the market conditions block.
func marketFeatures(m *Market) []float64 {
	return []float64{
		m.VolatilityLevel,
		m.BroadReturn30D * 100,
		m.SectorReturn30D * 100,
		m.RecentIPOAvgReturn * 100,
		m.IPOsSameWeek,
	}
}

// sentimentFeatures derives the sentiment block.
func sentimentFeatures(s *Sentiment) []float64 {
	return []float64{
		s.Score,
		s.NewsVolume,
		s.Velocity,
		s.SocialBuzz,
		s.GoogleTrends,
	}
}

// Extract derives the full feature vector from the provided record. The output
// always has exactly FeatureCount values, in the fixed block order matching
// FeatureNames. Missing input data degrades to block defaults, never an error.
func Extract(record *Record, now time.Time) []float64 {
	features := make([]float64, 0, FeatureCount)

	features = append(features, fundamentalFeatures(&record.Fundamentals, now)...)
	features = append(features, dealFeatures(&record.Deal, &record.Fundamentals)...)
	features = append(features, marketFeatures(&record.Market)...)
	features = append(features, sentimentFeatures(&record.Sentiment)...)

	return features
}
