package protection

import "stopkeeper/internal/domain"

// ProtectionState classifies the currently open protective orders for one
// symbol: at most one fixed stop and at most one trailing stop. The broker is
// expected to hold at most one of each, but duplicates are tolerated: the
// first order of a kind (in the broker's query order) is authoritative and
// the rest land in Extras as cancellation candidates, so the engine never
// acts on an arbitrary duplicate.
type ProtectionState struct {
	Fixed    *domain.ProtectionOrder
	Trailing *domain.ProtectionOrder
	Extras   []*domain.ProtectionOrder
}

// IsProtected reports whether at least one protective order is open.
func (s ProtectionState) IsProtected() bool {
	return s.Fixed != nil || s.Trailing != nil
}

// Classify partitions a symbol's open orders into the protection state,
// considering only open sell-side stops. Query order is preserved.
func Classify(orders []*domain.ProtectionOrder) ProtectionState {
	var state ProtectionState
	for _, o := range orders {
		if !o.IsProtective() {
			continue
		}
		switch o.Kind {
		case domain.FixedStop:
			if state.Fixed == nil {
				state.Fixed = o
			} else {
				state.Extras = append(state.Extras, o)
			}
		case domain.TrailingStop:
			if state.Trailing == nil {
				state.Trailing = o
			} else {
				state.Extras = append(state.Extras, o)
			}
		}
	}
	return state
}
