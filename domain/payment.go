package domain

type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodCOD  PaymentMethod = "cod"
	PaymentMethodUPI  PaymentMethod = "upi"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodCOD, PaymentMethodUPI:
		return true
	}
	return false
}

func (m PaymentMethod) String() string {
	return string(m)
}

type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentAttempt is one submission of a payment. It lives only for the duration of
// a single Submit call.
type PaymentAttempt struct {
	Method    PaymentMethod `json:"method"`
	Reference string        `json:"reference"`
	Status    PaymentStatus `json:"status"`
}

// CardDetails are the raw card fields. They are handed to the card processor and
// never persisted or logged.
type CardDetails struct {
	Number     string `json:"number"`
	ExpMonth   string `json:"expMonth"`
	ExpYear    string `json:"expYear"`
	CVC        string `json:"cvc"`
	HolderName string `json:"holderName,omitempty"`
}

// IsComplete reports whether every field the processor requires is filled in.
func (c CardDetails) IsComplete() bool {
	return c.Number != "" && c.ExpMonth != "" && c.ExpYear != "" && c.CVC != ""
}
