package payment

import (
	"sync"

	d "github.com/fjod/go_cart/storefront/domain"
)

var methodOrder = []d.PaymentMethod{d.PaymentMethodCard, d.PaymentMethodCOD, d.PaymentMethodUPI}

// Registry holds the adapters this process can offer. A disabled method is
// omitted from Available and cannot be looked up.
type Registry struct {
	mu       sync.RWMutex
	adapters map[d.PaymentMethod]Adapter
	disabled map[d.PaymentMethod]bool
}

// NewRegistry registers COD and UPI always and card only when a processor exists.
func NewRegistry(processor CardProcessor) *Registry {
	r := &Registry{
		adapters: map[d.PaymentMethod]Adapter{
			d.PaymentMethodCOD: CashOnDelivery{},
			d.PaymentMethodUPI: UPI{},
		},
		disabled: map[d.PaymentMethod]bool{},
	}
	if processor != nil {
		r.adapters[d.PaymentMethodCard] = NewCardGateway(processor)
	}
	return r
}

func (r *Registry) Get(m d.PaymentMethod) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.disabled[m] {
		return nil, false
	}
	a, ok := r.adapters[m]
	return a, ok
}

func (r *Registry) Available() []d.PaymentMethod {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]d.PaymentMethod, 0, len(methodOrder))
	for _, m := range methodOrder {
		if _, ok := r.adapters[m]; ok && !r.disabled[m] {
			out = append(out, m)
		}
	}
	return out
}

func (r *Registry) Disable(m d.PaymentMethod) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled[m] = true
}
