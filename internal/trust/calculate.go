package trust

import (
	"math"
	"time"
)

// Parameters that would come from content/image/sentiment models are held at
// a neutral value until a model provider is wired in.
const (
	neutralScore        = 0.7
	neutralPriceScore   = 0.75
	defaultDisputeRate  = 0.05
	disputeWeightFactor = 5.0
	maxExpectedIPs      = 10.0
	highReviewsPerDay   = 5.0
	maxReturnRate       = 0.5
	minOrdersForReturns = 5
)

// SellerStats are the inputs of the seller credibility score
type SellerStats struct {
	CreatedAt       time.Time
	TotalItems      int
	OnTimeItems     int
	CancelledItems  int
	Reviews         int
	PositiveReviews int
	// DisputeRate is the share of payments disputed; zero uses the platform default
	DisputeRate     float64
	// AveragePIS is nil when the seller has no scored products
	AveragePIS      *float64
}

// UserStats are the inputs of the user behavior score
type UserStats struct {
	CreatedAt           time.Time
	ProfileCompleteness float64
	UniqueIPsLast30Days int
	ReviewsLast7Days    int
	HasReviews          bool
	LinguisticScores    []float64
	Orders              int
	Returns             int
}

// ProductStats are the inputs of the product integrity score
type ProductStats struct {
	Price            float64
	AvgCategoryPrice float64
	Reviews          int
	PositiveReviews  int
	ItemsSold        int
	IntegrityReturns int
}

// SellerCredibility computes SCS at time now
func SellerCredibility(s SellerStats, now time.Time) float64 {
	p1 := neutralScore
	if s.TotalItems > 0 {
		total := float64(s.TotalItems)
		p1 = (1 - float64(s.CancelledItems)/total) * (float64(s.OnTimeItems) / total)
	}

	p2 := tenure(s.CreatedAt, now, 0.05)

	p3 := neutralScore
	if s.Reviews > 0 {
		p3 = float64(s.PositiveReviews) / float64(s.Reviews)
	}

	rate := s.DisputeRate
	if rate == 0 {
		rate = defaultDisputeRate
	}
	p4 := 1 - math.Min(rate*disputeWeightFactor, 1)

	p5 := neutralScore
	if s.AveragePIS != nil {
		p5 = *s.AveragePIS
	}

	return Clamp(p1*0.25 + p2*0.15 + p3*0.30 + p4*0.20 + p5*0.10)
}

// UserBehavior computes UBA at time now
func UserBehavior(u UserStats, now time.Time) float64 {
	p1 := tenure(u.CreatedAt, now, 0.1) * u.ProfileCompleteness

	p2 := 1 - math.Min(float64(u.UniqueIPsLast30Days)/maxExpectedIPs, 1)

	perDay := float64(u.ReviewsLast7Days) / 7.0
	p3 := 1 - math.Min(perDay/highReviewsPerDay, 1)

	p4 := 1.0
	if u.HasReviews {
		p4 = neutralScore
		if len(u.LinguisticScores) > 0 {
			var sum float64
			for _, s := range u.LinguisticScores {
				sum += s
			}
			p4 = sum / float64(len(u.LinguisticScores))
		}
	}

	p5 := 1.0
	if u.Orders > minOrdersForReturns {
		returnRate := float64(u.Returns) / float64(u.Orders)
		p5 = 1 - math.Min(returnRate/maxReturnRate, 1)
	}

	return Clamp(p1*0.15 + p2*0.20 + p3*0.25 + p4*0.30 + p5*0.10)
}

// ProductIntegrity computes PIS
func ProductIntegrity(p ProductStats) float64 {
	p1 := neutralScore

	p2 := neutralPriceScore
	if p.AvgCategoryPrice > 0 {
		deviation := math.Abs(p.Price-p.AvgCategoryPrice) / p.AvgCategoryPrice
		p2 = 1 - math.Min(deviation, 1)
	}

	p3 := neutralScore

	p4 := neutralScore
	if p.Reviews > 0 {
		p4 = float64(p.PositiveReviews) / float64(p.Reviews)
	}

	p5 := 1.0
	if p.ItemsSold > 0 {
		p5 = 1 - math.Min(float64(p.IntegrityReturns)/float64(p.ItemsSold), 1)
	}

	return Clamp(p1*0.30 + p2*0.20 + p3*0.10 + p4*0.30 + p5*0.10)
}

// tenure maps account age to [0,1): 1 - 1/(1 + days*rate)
func tenure(created, now time.Time, rate float64) float64 {
	if created.IsZero() || now.Before(created) {
		return 0
	}
	days := math.Floor(now.Sub(created).Hours() / 24)
	return 1 - 1/(1+days*rate)
}
