package catalog

// Strategy is one upstream search configuration.
type Strategy struct {
	Tags  string
	Order string
}

// Strategies are attempted in rotation until one yields valid tracks.
// Untagged popularity searches come first; genre-tagged searches are the
// narrower fallbacks.
var Strategies = []Strategy{
	{Tags: "", Order: "popularity_total"},
	{Tags: "", Order: "popularity_month"},
	{Tags: "", Order: "releasedate"},
	{Tags: "rock", Order: "popularity_total"},
	{Tags: "electronic", Order: "popularity_total"},
	{Tags: "pop", Order: "popularity_total"},
}

const maxPage = 10

// RotationState tracks where the strategy and page cursors stand between
// fetch calls.
type RotationState struct {
	StrategyIndex int
	Page          int
}

// NextAttempt computes the strategy and page for the next upstream attempt.
// Pages rotate 1..maxPage; the strategy cursor is unchanged here and only
// advances through AdvanceStrategy on failure, so retry order is
// deterministic and testable.
func NextAttempt(state RotationState) (Strategy, int, RotationState) {
	idx := state.StrategyIndex % len(Strategies)
	page := state.Page%maxPage + 1
	next := RotationState{StrategyIndex: idx, Page: page}
	return Strategies[idx], page, next
}

// AdvanceStrategy moves the rotation to the next strategy after a failed
// attempt.
func AdvanceStrategy(state RotationState) RotationState {
	return RotationState{
		StrategyIndex: (state.StrategyIndex + 1) % len(Strategies),
		Page:          state.Page,
	}
}
