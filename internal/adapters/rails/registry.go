package rails

import (
	"github.com/cartlane/affiliate-settlement-service/internal/domain"
	"github.com/cartlane/affiliate-settlement-service/internal/ports"
)

// Registry resolves rail adapters by kind. The manual rail is intentionally
// absent; it is settled out-of-band and recorded through the ledger.
type Registry struct {
	rails map[domain.RailKind]ports.PayoutRail
}

func NewRegistry(adapters ...ports.PayoutRail) *Registry {
	rails := make(map[domain.RailKind]ports.PayoutRail, len(adapters))
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		rails[adapter.Kind()] = adapter
	}
	return &Registry{rails: rails}
}

func (r *Registry) Rail(kind domain.RailKind) (ports.PayoutRail, bool) {
	rail, ok := r.rails[kind]
	return rail, ok
}
