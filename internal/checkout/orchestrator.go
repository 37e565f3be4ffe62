package checkout

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

const (
	defaultTimeout = 30 * time.Second
	publishTimeout = 5 * time.Second
)

type Config struct {
	// Timeout bounds every upstream call made by the orchestrator.
	Timeout time.Duration
}

// Orchestrator drives one user's checkout through shipping capture, payment and
// order creation.
type Orchestrator struct {
	cart      CartService
	orders    OrderService
	session   SessionProvider
	store     storage.Store
	payments  *payment.Registry
	publisher publisher.Publisher
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time

	mu           sync.Mutex
	state        d.CheckoutState
	checkoutID   string
	generation   uint64
	draft        d.ShippingDraft
	fieldErrors  []d.FieldError
	selection    payment.Selection
	intentSeq    uint64
	intentAmount float64
	intentBusy   bool
	submitting   bool
	lastErr      *d.Error
	order        *d.Order
	// charge taken by a submit whose order placement failed; reused on retry
	charged       *d.PaymentAttempt
	chargedAmount float64

	wg sync.WaitGroup
}

func NewOrchestrator(
	cart CartService,
	orders OrderService,
	session SessionProvider,
	store storage.Store,
	payments *payment.Registry,
	pub publisher.Publisher,
	cfg Config,
	log *slog.Logger,
) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if pub == nil {
		pub = publisher.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{
		cart:      cart,
		orders:    orders,
		session:   session,
		store:     store,
		payments:  payments,
		publisher: pub,
		logger:    log,
		timeout:   cfg.Timeout,
		now:       time.Now,
		state:     d.CheckoutStateIdle,
	}
}

// Begin enters checkout, prefilling shipping from the persisted draft. Calling it
// while a checkout is already open resumes that checkout.
func (o *Orchestrator) Begin(ctx context.Context) error {
	if !o.session.IsAuthenticated() {
		return errNotAuthenticated()
	}

	draft, err := storage.LoadShippingDraft(ctx, o.store)
	if err != nil {
		o.logger.WarnContext(ctx, "ignoring persisted shipping draft", "error", err)
		draft = nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case d.CheckoutStateIdle:
	case d.CheckoutStateCompleted:
		o.resetLocked()
	default:
		return nil
	}

	o.checkoutID = uuid.NewString()
	o.draft = d.ShippingDraft{}
	if draft != nil {
		o.draft = *draft
	}
	if err := o.transitionLocked(d.CheckoutStateShippingCapture); err != nil {
		return err
	}
	o.logger.InfoContext(ctx, "checkout started", "checkout_id", o.checkoutID)
	return nil
}

// Abandon leaves the flow. Results of calls still in flight are discarded when
// they arrive.
func (o *Orchestrator) Abandon() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == d.CheckoutStateIdle {
		return
	}
	o.logger.Info("checkout abandoned", "checkout_id", o.checkoutID, "state", o.state)
	o.resetLocked()
}

func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()

	v := View{
		State:            o.state,
		CheckoutID:       o.checkoutID,
		Shipping:         o.draft,
		FieldErrors:      append([]d.FieldError(nil), o.fieldErrors...),
		PaymentMethod:    o.selection.Method(),
		AvailableMethods: o.payments.Available(),
		PaymentReady:     o.charged != nil || o.selection.Ready(),
		PaymentCaptured:  o.charged != nil,
		IntentPending:    o.intentBusy,
		Submitting:       o.submitting,
	}
	if o.lastErr != nil {
		v.ErrorCode = o.lastErr.Code
		v.ErrorMessage = d.UserMessage(o.lastErr)
	}
	if o.order != nil {
		order := *o.order
		v.Order = &order
	}
	return v
}

func (o *Orchestrator) State() d.CheckoutState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Close waits for background work (intent creation, event publishing).
func (o *Orchestrator) Close() {
	o.wg.Wait()
}

// resetLocked returns to Idle and invalidates everything in flight.
func (o *Orchestrator) resetLocked() {
	o.generation++
	o.state = d.CheckoutStateIdle
	o.checkoutID = ""
	o.fieldErrors = nil
	o.selection.Clear()
	o.intentSeq++
	o.intentAmount = 0
	o.intentBusy = false
	o.submitting = false
	o.lastErr = nil
	o.order = nil
	if o.charged != nil {
		o.logger.Error("checkout left with a charged card and no order",
			"payment_reference", o.charged.Reference, "amount", o.chargedAmount)
	}
	o.charged = nil
	o.chargedAmount = 0
}

func (o *Orchestrator) transitionLocked(to d.CheckoutState) error {
	if !d.CanTransitionTo(o.state, to) {
		return ErrIllegalTransition
	}
	o.logger.Debug("checkout transition", "checkout_id", o.checkoutID, "from", o.state, "to", to)
	o.state = to
	return nil
}

func (o *Orchestrator) requireStateLocked(states ...d.CheckoutState) error {
	for _, s := range states {
		if o.state == s {
			return nil
		}
	}
	return ErrIllegalTransition
}

// expire handles a 401 from any upstream: the session is dropped and the
// checkout starts over after login.
func (o *Orchestrator) expire(ctx context.Context, err error) {
	o.session.Expire(ctx, "session expired")
	o.mu.Lock()
	o.resetLocked()
	o.lastErr = asDomainError(err)
	o.mu.Unlock()
}

func (o *Orchestrator) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.timeout)
}

func (o *Orchestrator) publish(ev publisher.Event) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := o.publisher.Publish(ctx, ev); err != nil {
			o.logger.Warn("failed to publish checkout event", "event_type", ev.Type, "checkout_id", ev.CheckoutID, "error", err)
		}
	}()
}

func (o *Orchestrator) userID() string {
	if u := o.session.User(); u != nil {
		return u.ID
	}
	return ""
}

func errNotAuthenticated() *d.Error {
	return d.NewError(d.KindAuthentication, d.CodeNotAuthenticated, "Please log in to continue.")
}

// asDomainError gives any failure a place in the taxonomy so it always carries a
// message for the user.
func asDomainError(err error) *d.Error {
	if e, ok := d.AsError(err); ok {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return d.NetworkError(err)
	}
	return d.WrapError(d.KindInfrastructure, d.CodeServerError, "", err)
}

func isSessionExpired(err error) bool {
	return errors.Is(err, d.ErrAuthentication)
}
