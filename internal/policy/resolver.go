// Package policy maps symbols to their protection policies.
package policy

import (
	"fmt"

	"stopkeeper/internal/domain"
)

// Resolver resolves the protection policy for a symbol from a static,
// read-only table. Unknown symbols receive the default policy; Resolve never
// fails and has no side effects.
type Resolver struct {
	table map[string]domain.ProtectionPolicy
	def   domain.ProtectionPolicy
}

// NewResolver validates the per-symbol table and the default policy and
// builds a resolver over a private copy of the table.
func NewResolver(table map[string]domain.ProtectionPolicy, def domain.ProtectionPolicy) (*Resolver, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("default policy: %w", err)
	}
	own := make(map[string]domain.ProtectionPolicy, len(table))
	for sym, pol := range table {
		if err := pol.Validate(); err != nil {
			return nil, fmt.Errorf("policy for %s: %w", sym, err)
		}
		own[sym] = pol
	}
	return &Resolver{table: own, def: def}, nil
}

// Resolve returns the policy configured for symbol, or the default.
func (r *Resolver) Resolve(symbol string) domain.ProtectionPolicy {
	if pol, ok := r.table[symbol]; ok {
		return pol
	}
	return r.def
}
