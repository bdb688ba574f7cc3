// Package contextstore implements the Conversational Context Store: a
// process-local mapping from principal to a bounded FIFO of Exchanges plus a
// free-form scratchpad, per spec.md §4.7. It does not persist across
// restarts — persistence is an external collaborator's concern.
package contextstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultCapacity is the default Session history cap (spec.md §3, N=50).
	DefaultCapacity = 50
	// DefaultTokenBudget bounds format_history_for_prompt's output size even
	// when the exchange-count cap has not been reached.
	DefaultTokenBudget = 6000
)

// ActionRecord is the Action+Observation summary attached to an Exchange.
type ActionRecord struct {
	ToolName  string
	Arguments map[string]any
	Reasoning string
	Status    string
	Result    string
}

// Exchange is a single user/assistant turn plus any tool calls it produced.
type Exchange struct {
	Timestamp     time.Time
	UserText      string
	AssistantText string
	Actions       []ActionRecord
}

// Session is one principal's bounded conversation history and scratchpad.
type Session struct {
	mu         sync.Mutex
	principal  string
	capacity   int
	exchanges  []Exchange
	scratchpad map[string]any
	lastTouch  time.Time
}

func newSession(principal string, capacity int) *Session {
	return &Session{
		principal:  principal,
		capacity:   capacity,
		scratchpad: make(map[string]any),
		lastTouch:  time.Now(),
	}
}

func (s *Session) append(ex Exchange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = append(s.exchanges, ex)
	if len(s.exchanges) > s.capacity {
		// Oldest entry is evicted first.
		s.exchanges = s.exchanges[len(s.exchanges)-s.capacity:]
	}
	s.lastTouch = time.Now()
}

func (s *Session) snapshot() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Exchange, len(s.exchanges))
	copy(out, s.exchanges)
	return out
}

func (s *Session) setVariable(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scratchpad[key] = value
}

func (s *Session) getVariable(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.scratchpad[key]
	return v, ok
}

func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = nil
	s.scratchpad = make(map[string]any)
	s.lastTouch = time.Now()
}

// Stats summarizes a Session's current state.
type Stats struct {
	Principal     string
	ExchangeCount int
	LastTouched   time.Time
}

// PromptMessage is one role-tagged line of the formatted history, oldest
// excluded, newest last.
type PromptMessage struct {
	Role    string // "user" or "assistant"
	Content string
}

// Store maps principal -> Session.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	capacity    int
	tokenBudget int
	enc         *tiktoken.Tiktoken
}

// New constructs a Store with the given per-Session exchange cap and
// per-prompt token budget. If the tiktoken encoding cannot be loaded the
// Store still works, falling back to counting runes as a token proxy.
func New(capacity, tokenBudget int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &Store{
		sessions:    make(map[string]*Session),
		capacity:    capacity,
		tokenBudget: tokenBudget,
		enc:         enc,
	}
}

// Get returns the Session for principal, creating it lazily on first touch.
func (st *Store) Get(principal string) *Session {
	st.mu.RLock()
	s, ok := st.sessions[principal]
	st.mu.RUnlock()
	if ok {
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[principal]; ok {
		return s
	}
	s = newSession(principal, st.capacity)
	st.sessions[principal] = s
	return s
}

// AppendExchange records one user/assistant turn. Append operations are
// serialized per principal (via Session's own mutex) to preserve monotone
// timestamps; no cross-principal ordering is implied.
func (st *Store) AppendExchange(principal, userText, assistantText string, actions []ActionRecord) error {
	if principal == "" {
		return fmt.Errorf("contextstore: principal must not be empty")
	}
	st.Get(principal).append(Exchange{
		Timestamp:     time.Now(),
		UserText:      userText,
		AssistantText: assistantText,
		Actions:       actions,
	})
	return nil
}

// FormatHistoryForPrompt returns up to maxExchanges prior turns as
// role-tagged messages, newest-last, additionally bounded by the Store's
// token budget: older exchanges are dropped once the budget is spent, even
// when under the exchange-count cap. The newest exchange is always kept,
// even when it alone exceeds the budget.
func (st *Store) FormatHistoryForPrompt(principal string, maxExchanges int) []PromptMessage {
	all := st.Get(principal).snapshot()
	if maxExchanges > 0 && len(all) > maxExchanges {
		all = all[len(all)-maxExchanges:]
	}

	// Walk from newest to oldest, keeping whole exchanges until the token
	// budget would be exceeded, then restore chronological order.
	var kept []Exchange
	budget := st.tokenBudget
	for i := len(all) - 1; i >= 0; i-- {
		ex := all[i]
		cost := st.tokenCount(ex.UserText) + st.tokenCount(ex.AssistantText)
		if len(kept) > 0 && cost > budget {
			break
		}
		kept = append(kept, ex)
		budget -= cost
		if budget <= 0 {
			break
		}
	}

	out := make([]PromptMessage, 0, len(kept)*2)
	for i := len(kept) - 1; i >= 0; i-- {
		ex := kept[i]
		out = append(out, PromptMessage{Role: "user", Content: ex.UserText})
		out = append(out, PromptMessage{Role: "assistant", Content: ex.AssistantText})
	}
	return out
}

func (st *Store) tokenCount(text string) int {
	if text == "" {
		return 0
	}
	if st.enc == nil {
		return len([]rune(text)) / 4 // rough fallback proxy
	}
	return len(st.enc.Encode(text, nil, nil))
}

// SetVariable stores a scratchpad value for principal.
func (st *Store) SetVariable(principal, key string, value any) {
	st.Get(principal).setVariable(key, value)
}

// GetVariable reads a scratchpad value for principal.
func (st *Store) GetVariable(principal, key string) (any, bool) {
	return st.Get(principal).getVariable(key)
}

// Clear drops principal's history and scratchpad.
func (st *Store) Clear(principal string) {
	st.Get(principal).clear()
}

// Stats summarizes principal's current Session.
func (st *Store) Stats(principal string) Stats {
	s := st.Get(principal)
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Principal:     principal,
		ExchangeCount: len(s.exchanges),
		LastTouched:   s.lastTouch,
	}
}
