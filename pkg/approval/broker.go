package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
)

// BrokerMode selects how the Confirmation Broker resolves a
// requires-confirmation action once the Permission Engine has classified it.
type BrokerMode int

const (
	// BrokerInteractive blocks the calling goroutine until a human answers
	// (CLI prompt or equivalent synchronous channel).
	BrokerInteractive BrokerMode = iota
	// BrokerAsync records a pending confirmation, optionally notifies a
	// push subscriber, and blocks the caller until Resolve answers it, the
	// timeout fires, or the context is done.
	BrokerAsync
	// BrokerAutoApprove approves every request automatically. Intended for
	// development only — every auto-approval is tagged in the audit log.
	BrokerAutoApprove
)

// PendingConfirmation is a confirmation request awaiting a human decision.
type PendingConfirmation struct {
	ID        string
	Principal string
	ToolName  string
	Request   Request
	CreatedAt time.Time
	ExpiresAt time.Time

	resolved chan Decision
	decision Decision
	once     sync.Once
}

// Broker resolves confirmation requests under one of three modes.
type Broker struct {
	mode    BrokerMode
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*PendingConfirmation

	pushSubscriber *webpush.Subscription
	pushVAPIDPub   string
	pushVAPIDPriv  string
}

// NewBroker constructs a broker in the given mode. timeout bounds how long
// BrokerInteractive and BrokerAsync wait before a confirmation expires.
func NewBroker(mode BrokerMode, timeout time.Duration) *Broker {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Broker{
		mode:    mode,
		timeout: timeout,
		pending: make(map[string]*PendingConfirmation),
	}
}

// ConfigurePush registers a Web Push subscriber and VAPID keypair so async
// confirmations can notify a human out-of-band instead of relying only on
// polling.
func (b *Broker) ConfigurePush(sub *webpush.Subscription, vapidPublic, vapidPrivate string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pushSubscriber = sub
	b.pushVAPIDPub = vapidPublic
	b.pushVAPIDPriv = vapidPrivate
}

// Resolver answers a PendingConfirmation when running in BrokerInteractive
// mode. It is the synchronous, CLI-style approval path.
type Resolver func(ctx context.Context, req Request) (Decision, error)

// RequestConfirmation asks the broker to resolve a requires-confirmation
// action. In auto-approve mode it returns immediately with a tagged
// approval; in interactive mode it calls resolve synchronously; in async
// mode it registers a pending confirmation, pushes a notification if one
// is configured, and blocks until Resolve is called or the timeout fires.
func (b *Broker) RequestConfirmation(ctx context.Context, principal, toolName string, req Request, resolve Resolver) (Decision, bool, error) {
	switch b.mode {
	case BrokerAutoApprove:
		return DecisionAllow, true, nil

	case BrokerInteractive:
		if resolve == nil {
			return DecisionDeny, false, fmt.Errorf("confirmation: no interactive resolver configured")
		}
		ctx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		decision, err := resolve(ctx, req)
		return decision, false, err

	case BrokerAsync:
		pc := b.registerPending(principal, toolName, req)
		b.notifyPush(pc)
		select {
		case decision := <-pc.resolved:
			return decision, false, nil
		case <-time.After(b.timeout):
			b.expire(pc.ID)
			return DecisionDeny, false, fmt.Errorf("confirmation %s timed out after %s", pc.ID, b.timeout)
		case <-ctx.Done():
			return DecisionDeny, false, ctx.Err()
		}

	default:
		return DecisionDeny, false, fmt.Errorf("confirmation: unknown broker mode %d", b.mode)
	}
}

func (b *Broker) registerPending(principal, toolName string, req Request) *PendingConfirmation {
	pc := &PendingConfirmation{
		ID:        uuid.NewString(),
		Principal: principal,
		ToolName:  toolName,
		Request:   req,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(b.timeout),
		resolved:  make(chan Decision, 1),
	}
	b.mu.Lock()
	b.pending[pc.ID] = pc
	b.mu.Unlock()
	return pc
}

// Resolve answers a pending async confirmation by ID. Safe to call once;
// subsequent calls are no-ops.
func (b *Broker) Resolve(id string, decision Decision) error {
	b.mu.Lock()
	pc, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("confirmation %s not found or already resolved", id)
	}
	pc.once.Do(func() {
		pc.decision = decision
		pc.resolved <- decision
	})
	return nil
}

func (b *Broker) expire(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// Pending reaps expired confirmations (see Sweep), then lists the remaining
// outstanding async confirmations.
func (b *Broker) Pending() []*PendingConfirmation {
	b.Sweep()
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*PendingConfirmation, 0, len(b.pending))
	for _, pc := range b.pending {
		out = append(out, pc)
	}
	return out
}

// Sweep removes expired pending confirmations and resolves them as denied,
// preventing unbounded growth when a human never answers.
func (b *Broker) Sweep() int {
	now := time.Now()
	var expired []*PendingConfirmation
	b.mu.Lock()
	for id, pc := range b.pending {
		if now.After(pc.ExpiresAt) {
			expired = append(expired, pc)
			delete(b.pending, id)
		}
	}
	b.mu.Unlock()

	for _, pc := range expired {
		pc.once.Do(func() {
			pc.decision = DecisionDeny
			pc.resolved <- DecisionDeny
		})
	}
	return len(expired)
}

func (b *Broker) notifyPush(pc *PendingConfirmation) {
	if b.pushSubscriber == nil {
		return
	}
	payload := []byte(fmt.Sprintf(`{"confirmation_id":%q,"tool":%q,"principal":%q}`, pc.ID, pc.ToolName, pc.Principal))
	_, _ = webpush.SendNotification(payload, b.pushSubscriber, &webpush.Options{
		VAPIDPublicKey:  b.pushVAPIDPub,
		VAPIDPrivateKey: b.pushVAPIDPriv,
		TTL:             int(b.timeout.Seconds()),
	})
}
