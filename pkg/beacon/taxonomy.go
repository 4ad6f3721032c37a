package beacon

// Category classifies an event. Categories and their actions form a closed
// taxonomy; pairs outside it are dropped silently so the schema can evolve
// without runtime crashes.
type Category string

// Action is what happened within a category.
type Action string

// Built-in categories.
const (
	CategoryNavigation Category = "navigation"
	CategoryEngagement Category = "engagement"
	CategoryConversion Category = "conversion"

	// CategoryTelemetry carries the pipeline's own lifecycle events
	// (breaker transitions, queue overflow).
	CategoryTelemetry Category = "telemetry"
)

// Built-in actions.
const (
	ActionPageView    Action = "page_view"
	ActionSectionView Action = "section_view"
	ActionScrollDepth Action = "scroll_depth"

	ActionCTAClick      Action = "cta_click"
	ActionVideoPlay     Action = "video_play"
	ActionDownload      Action = "download"
	ActionOutboundClick Action = "outbound_click"

	ActionSignup        Action = "signup"
	ActionContactSubmit Action = "contact_submit"

	ActionBreakerOpen     Action = "breaker_open"
	ActionBreakerHalfOpen Action = "breaker_half_open"
	ActionBreakerClosed   Action = "breaker_closed"
	ActionQueueOverflow   Action = "queue_overflow"
)

// Taxonomy is the allow-list of valid (category, action) pairs.
type Taxonomy map[Category]map[Action]struct{}

// Allows reports whether the pair belongs to the taxonomy.
func (tx Taxonomy) Allows(c Category, a Action) bool {
	actions, ok := tx[c]
	if !ok {
		return false
	}
	_, ok = actions[a]
	return ok
}

// Add registers a pair, creating the category if needed. Returns the
// taxonomy for chaining.
func (tx Taxonomy) Add(c Category, actions ...Action) Taxonomy {
	set, ok := tx[c]
	if !ok {
		set = make(map[Action]struct{}, len(actions))
		tx[c] = set
	}
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return tx
}

// DefaultTaxonomy returns a fresh copy of the built-in taxonomy. Callers may
// extend the returned value without affecting other trackers.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{}.
		Add(CategoryNavigation, ActionPageView, ActionSectionView, ActionScrollDepth).
		Add(CategoryEngagement, ActionCTAClick, ActionVideoPlay, ActionDownload, ActionOutboundClick).
		Add(CategoryConversion, ActionSignup, ActionContactSubmit).
		Add(CategoryTelemetry, ActionBreakerOpen, ActionBreakerHalfOpen, ActionBreakerClosed, ActionQueueOverflow)
}
