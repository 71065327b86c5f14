package lifecycle

import "strings"

// ReasonCategory is the structured classification of a return reason
type ReasonCategory string

const (
	ReasonUncategorized  ReasonCategory = ""
	ReasonFake           ReasonCategory = "fake"
	ReasonCounterfeit    ReasonCategory = "counterfeit"
	ReasonNotAsDescribed ReasonCategory = "not_as_described"
	ReasonDamaged        ReasonCategory = "damaged"
	ReasonOther          ReasonCategory = "other"
)

// IntegrityCategories are return categories that count against a product's
// integrity score.
var IntegrityCategories = []ReasonCategory{
	ReasonCounterfeit,
	ReasonFake,
	ReasonNotAsDescribed,
	ReasonDamaged,
}

// ClassifyReason derives a category from free-text return reason.
func ClassifyReason(text string) ReasonCategory {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "fake"), strings.Contains(lower, "counterfeit"):
		return ReasonFake
	case strings.Contains(lower, "described"), strings.Contains(lower, "different"):
		return ReasonNotAsDescribed
	default:
		return ReasonUncategorized
	}
}

// StoredCategory is the value persisted for a return; uncategorized reasons
// are stored as "other".
func (c ReasonCategory) StoredCategory() ReasonCategory {
	if c == ReasonUncategorized {
		return ReasonOther
	}
	return c
}

// IsIntegrityIssue reports whether c is one of IntegrityCategories
func (c ReasonCategory) IsIntegrityIssue() bool {
	for _, ic := range IntegrityCategories {
		if c == ic {
			return true
		}
	}
	return false
}
