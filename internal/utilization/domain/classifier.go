// Package utilization classifies raw usage events into human-meaningful
// categories of tool use.
package utilization

// Category is a classified bucket of tool activity.
type Category string

const (
	CategoryIdle          Category = "idle"
	CategoryIdeal         Category = "ideal"
	CategoryRisky         Category = "risky"
	CategoryToolDamage    Category = "tool_damage"
	CategoryOperatorError Category = "operator_error"
	CategoryTransport     Category = "transport"
)

// Duration bucket bounds in seconds. Each bound is the inclusive upper edge
// of its bucket; together the buckets partition [0, inf).
const (
	idealMaxSeconds         = 20
	riskyMaxSeconds         = 40
	toolDamageMaxSeconds    = 80
	operatorErrorMaxSeconds = 180
)

// Classification is the result of classifying a single usage event.
type Classification struct {
	Category   Category
	Color      string
	IsBurst    bool
	ToolActive bool
}

// Classify maps a usage interval to its category. Negative or missing
// durations clamp to zero and land in the lowest bucket; an unmatched value
// must never default to a high-severity bucket.
func Classify(durationSeconds int, toolActive bool) Classification {
	if !toolActive {
		return Classification{Category: CategoryIdle, Color: colorFor(CategoryIdle)}
	}
	if durationSeconds < 0 {
		durationSeconds = 0
	}

	var category Category
	switch {
	case durationSeconds <= idealMaxSeconds:
		category = CategoryIdeal
	case durationSeconds <= riskyMaxSeconds:
		category = CategoryRisky
	case durationSeconds <= toolDamageMaxSeconds:
		category = CategoryToolDamage
	case durationSeconds <= operatorErrorMaxSeconds:
		category = CategoryOperatorError
	default:
		category = CategoryTransport
	}

	return Classification{
		Category:   category,
		Color:      colorFor(category),
		IsBurst:    durationSeconds <= idealMaxSeconds,
		ToolActive: true,
	}
}

// CountsAsWorking reports whether the category contributes to working
// totals. Idle and long-motion transport intervals are excluded.
func (c Category) CountsAsWorking() bool {
	switch c {
	case CategoryIdle, CategoryTransport:
		return false
	default:
		return true
	}
}

func colorFor(category Category) string {
	switch category {
	case CategoryIdle:
		return "gray"
	case CategoryIdeal:
		return "green"
	case CategoryRisky:
		return "yellow"
	case CategoryToolDamage:
		return "orange"
	case CategoryOperatorError:
		return "red"
	case CategoryTransport:
		return "blue"
	default:
		return "gray"
	}
}
