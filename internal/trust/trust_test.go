package trust

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupPIS(t *testing.T) {
	tests := []struct {
		value float64
		flag  string
	}{
		{0.65, "Verified"},
		{0.15, "Suspicious"},
		{1.0, "Excellent"},
		{0.8, "Excellent"},
		{0.2, "Caution"},
		{0, "Suspicious"},
	}

	for _, tt := range tests {
		got, err := Lookup(PIS, tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.flag, got.Flag, "value %v", tt.value)
	}
}

func TestLookupSCSAndUBA(t *testing.T) {
	got, err := Lookup(SCS, 0.95)
	require.NoError(t, err)
	assert.Equal(t, "Top Seller", got.Flag)
	assert.Equal(t, "bg-blue-500 text-white", got.FlagColor)

	got, err = Lookup(SCS, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "Moderate", got.Flag)

	got, err = Lookup(UBA, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "Normal", got.Flag)
	assert.Contains(t, got.Insight, "normal")
}

func TestLookupClampsOutOfRange(t *testing.T) {
	got, err := Lookup(UBA, -3)
	require.NoError(t, err)
	assert.Equal(t, "Suspicious Activity", got.Flag)
	assert.Equal(t, 0.0, got.Value)

	got, err = Lookup(UBA, 7)
	require.NoError(t, err)
	assert.Equal(t, "Trusted User", got.Flag)
}

func TestLookupUnknownType(t *testing.T) {
	_, err := Lookup(ScoreType("XYZ"), 0.5)
	assert.Error(t, err)
}

func TestParseScoreType(t *testing.T) {
	st, err := ParseScoreType(" pis ")
	require.NoError(t, err)
	assert.Equal(t, PIS, st)

	_, err = ParseScoreType("abc")
	assert.Error(t, err)
}

func TestLevelsAscending(t *testing.T) {
	for st, cfg := range configs {
		require.NotEmpty(t, cfg.Levels, st)
		assert.Equal(t, 0.0, cfg.Levels[0].Threshold, st)
		for i := 1; i < len(cfg.Levels); i++ {
			assert.Greater(t, cfg.Levels[i].Threshold, cfg.Levels[i-1].Threshold, st)
		}
	}
}

func TestSellerCredibility(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	fresh := SellerCredibility(SellerStats{CreatedAt: now}, now)
	// p1 .7, p2 0, p3 .7, p4 .75, p5 .7
	assert.InDelta(t, 0.7*0.25+0.7*0.30+0.75*0.20+0.7*0.10, fresh, 1e-9)

	pis := 0.9
	good := SellerCredibility(SellerStats{
		CreatedAt:       now.AddDate(0, 0, -200),
		TotalItems:      10,
		OnTimeItems:     10,
		Reviews:         4,
		PositiveReviews: 4,
		AveragePIS:      &pis,
	}, now)
	bad := SellerCredibility(SellerStats{
		CreatedAt:      now.AddDate(0, 0, -200),
		TotalItems:     10,
		OnTimeItems:    2,
		CancelledItems: 5,
		Reviews:        4,
	}, now)
	assert.Greater(t, good, bad)
	assert.LessOrEqual(t, good, 1.0)
	assert.GreaterOrEqual(t, bad, 0.0)
}

func TestUserBehavior(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	base := UserStats{CreatedAt: now.AddDate(-1, 0, 0), ProfileCompleteness: 1}
	clean := UserBehavior(base, now)

	noisy := base
	noisy.UniqueIPsLast30Days = 20
	noisy.ReviewsLast7Days = 70
	noisy.HasReviews = true
	noisy.LinguisticScores = []float64{0.1, 0.2}
	noisy.Orders = 10
	noisy.Returns = 8

	assert.Greater(t, clean, UserBehavior(noisy, now))
}

func TestProductIntegrity(t *testing.T) {
	neutral := ProductIntegrity(ProductStats{Price: 100})
	assert.InDelta(t, 0.7*0.30+0.75*0.20+0.7*0.10+0.7*0.30+1.0*0.10, neutral, 1e-9)

	returned := ProductIntegrity(ProductStats{Price: 100, AvgCategoryPrice: 100, ItemsSold: 4, IntegrityReturns: 4})
	clean := ProductIntegrity(ProductStats{Price: 100, AvgCategoryPrice: 100, ItemsSold: 4})
	assert.Greater(t, clean, returned)
}
