package trust

import (
	"fmt"
	"strings"
)

// ScoreType identifies one of the platform trust metrics
type ScoreType string

const (
	// PIS is the Product Integrity Score
	PIS ScoreType = "PIS"
	// SCS is the Seller Credibility Score
	SCS ScoreType = "SCS"
	// UBA is the User Behavior and Anomaly Score
	UBA ScoreType = "UBA"
)

// Level is one tier of a score's interpretation
type Level struct {
	Threshold float64 `json:"threshold"`
	Flag      string  `json:"flag"`
	FlagColor string  `json:"flag_color"`
	Insight   string  `json:"insight"`
}

// Config describes a score type and its tiers ordered by ascending threshold
type Config struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Levels      []Level `json:"levels"`
}

// Insight is the presentation of a concrete score value
type Insight struct {
	Type      ScoreType `json:"type"`
	Value     float64   `json:"value"`
	Flag      string    `json:"flag"`
	FlagColor string    `json:"flag_color"`
	Insight   string    `json:"insight"`
}

var configs = map[ScoreType]Config{
	PIS: {
		Name:        "Product Integrity Score",
		Description: "This score ensures a product listing is authentic, accurately described, and not a counterfeit. A higher score indicates a more trustworthy product.",
		Levels: []Level{
			{0, "Suspicious", "bg-red-500 text-white", "This product is flagged as suspicious due to potential counterfeiting, misrepresentation, or quality issues."},
			{0.2, "Caution", "bg-yellow-500 text-black", "This product warrants caution. It may have some inconsistencies in its listing or a slightly higher than normal rate of negative feedback."},
			{0.6, "Verified", "bg-green-500 text-white", "This product has a good integrity score, indicating it is likely authentic and accurately described."},
			{0.8, "Excellent", "bg-blue-500 text-white", "This product has an excellent integrity score, indicating a high degree of trust in its authenticity and description."},
		},
	},
	SCS: {
		Name:        "Seller Credibility Score",
		Description: "This score assesses a seller's overall trustworthiness based on their history, performance, and the quality of their products. A high score indicates a reliable seller.",
		Levels: []Level{
			{0, "High Risk", "bg-red-500 text-white", "This seller is considered high-risk due to a history of issues or poor performance."},
			{0.3, "Moderate", "bg-yellow-500 text-black", "This seller has a moderate credibility score. Proceed with some caution."},
			{0.7, "Reliable", "bg-green-500 text-white", "This seller has a strong track record of reliability and customer satisfaction."},
			{0.9, "Top Seller", "bg-blue-500 text-white", "This is a top-rated seller with a history of excellent service and high-quality products."},
		},
	},
	UBA: {
		Name:        "User Behavior and Anomaly Score",
		Description: "This score identifies suspicious user activity and anomalous behavior on the platform, flagging potential bots, account takeovers, or review manipulators. A lower score indicates higher risk.",
		Levels: []Level{
			{0, "Suspicious Activity", "bg-red-500 text-white", "Highly suspicious behavior detected, such as high IP churn or inauthentic-looking reviews."},
			{0.2, "Unusual Patterns", "bg-yellow-500 text-black", "Some unusual user activity patterns have been noted, warranting caution."},
			{0.5, "Normal", "bg-green-500 text-white", "User behavior appears to be normal and within expected patterns."},
			{0.8, "Trusted User", "bg-blue-500 text-white", "This user has a consistent and trusted activity record on the platform."},
		},
	},
}

// ParseScoreType accepts "pis", "SCS" and so on
func ParseScoreType(s string) (ScoreType, error) {
	t := ScoreType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := configs[t]; !ok {
		return "", fmt.Errorf("unknown score type %q", s)
	}
	return t, nil
}

// ConfigFor returns the tier configuration of a score type
func ConfigFor(t ScoreType) (Config, error) {
	cfg, ok := configs[t]
	if !ok {
		return Config{}, fmt.Errorf("unknown score type %q", t)
	}
	return cfg, nil
}

// Lookup resolves value to the highest tier whose threshold it meets.
// Thresholds are scanned from highest to lowest; values outside [0,1] are clamped.
func Lookup(t ScoreType, value float64) (Insight, error) {
	cfg, err := ConfigFor(t)
	if err != nil {
		return Insight{}, err
	}

	v := Clamp(value)
	for i := len(cfg.Levels) - 1; i >= 0; i-- {
		lvl := cfg.Levels[i]
		if v >= lvl.Threshold {
			return Insight{
				Type:      t,
				Value:     v,
				Flag:      lvl.Flag,
				FlagColor: lvl.FlagColor,
				Insight:   lvl.Insight,
			}, nil
		}
	}

	// unreachable while every config starts at threshold 0
	return Insight{}, fmt.Errorf("no %s tier for value %v", t, value)
}

// Clamp limits v to the score domain [0,1]
func Clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
