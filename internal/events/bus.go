// Package events fans committed ledger events out to in-process
// subscribers (websocket clients, metrics) and keeps a short history for
// late joiners.
package events

import (
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/google/uuid"
)

// Topic is the bus topic every ledger event is published on.
const Topic = "ledger:event"

// Kind names what happened.
type Kind string

const (
	KindAssetMinted     Kind = "asset_minted"
	KindAssetTransfer   Kind = "asset_transferred"
	KindAssetRetired    Kind = "asset_retired"
	KindTokenMinted     Kind = "token_minted"
	KindTokenBurned     Kind = "token_burned"
	KindTokenTransfer   Kind = "token_transferred"
	KindStaked          Kind = "staked"
	KindUnstaked        Kind = "unstaked"
	KindRewardsClaimed  Kind = "rewards_claimed"
	KindTokensPurchased Kind = "tokens_purchased"
	KindWithdrawal      Kind = "treasury_withdrawn"
	KindListed          Kind = "listed"
	KindSold            Kind = "sold"
	KindApproval        Kind = "approval"
	KindRole            Kind = "role_changed"
	KindCommitted       Kind = "block_committed"
)

// Event is one ledger event.
type Event struct {
	ID     string         `json:"id"`
	Kind   Kind           `json:"kind"`
	TxID   string         `json:"tx_id,omitempty"`
	Caller string         `json:"caller,omitempty"`
	Height int64          `json:"height,omitempty"`
	Time   int64          `json:"time"`
	Data   map[string]any `json:"data,omitempty"`
}

// New creates an event with a fresh id.
func New(kind Kind, at int64, data map[string]any) Event {
	return Event{ID: uuid.NewString(), Kind: kind, Time: at, Data: data}
}

// Publisher is what ledger components need to emit events.
type Publisher interface {
	Publish(Event)
}

// Bus is an EventBus backed publisher with a bounded history.
type Bus struct {
	bus evbus.Bus

	mu         sync.RWMutex
	history    []Event
	maxHistory int
	published  uint64
	started    time.Time
}

// NewBus creates a bus remembering the last maxHistory events.
func NewBus(maxHistory int) *Bus {
	if maxHistory <= 0 {
		maxHistory = 256
	}
	return &Bus{
		bus:        evbus.New(),
		history:    make([]Event, 0, maxHistory),
		maxHistory: maxHistory,
		started:    time.Now(),
	}
}

// Publish records e and delivers it to every subscriber synchronously.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	b.history = append(b.history, e)
	if len(b.history) > b.maxHistory {
		b.history = b.history[len(b.history)-b.maxHistory:]
	}
	b.published++
	b.mu.Unlock()

	b.bus.Publish(Topic, e)
}

// Subscribe registers fn for every future event and returns a function that
// removes it.
func (b *Bus) Subscribe(fn func(Event)) (func(), error) {
	if err := b.bus.Subscribe(Topic, fn); err != nil {
		return nil, err
	}
	return func() { _ = b.bus.Unsubscribe(Topic, fn) }, nil
}

// Recent returns up to n of the latest events, newest first.
func (b *Bus) Recent(n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || n > len(b.history) {
		n = len(b.history)
	}
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		out[i] = b.history[len(b.history)-1-i]
	}
	return out
}

// Published returns how many events went through the bus.
func (b *Bus) Published() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.published
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}
