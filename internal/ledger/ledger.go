// Package ledger composes the asset registry, fungible ledger, staking,
// economy and market engines into the replicated ledger state. The ABCI
// application applies confirmed transactions to it one at a time; the ledger
// itself does no locking.
package ledger

import (
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"oasis.ledger/oasis/internal/access"
	"oasis.ledger/oasis/internal/clock"
	"oasis.ledger/oasis/internal/economy"
	"oasis.ledger/oasis/internal/events"
	"oasis.ledger/oasis/internal/fungible"
	"oasis.ledger/oasis/internal/market"
	"oasis.ledger/oasis/internal/registry"
	"oasis.ledger/oasis/internal/staking"
	"oasis.ledger/oasis/internal/types"
)

// Ledger is the full replicated state.
type Ledger struct {
	roles    *access.Roles
	registry *registry.Registry
	tokens   *fungible.Ledger
	staking  *staking.Engine
	economy  *economy.Engine
	market   *market.Market

	height int64
	clock  clock.Clock
	events events.Publisher
	log    *zap.Logger
}

// Option configures the ledger environment.
type Option func(*Ledger)

// WithClock sets the time source. The default clock is stuck at zero.
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// WithEvents sets where applied transitions are announced.
func WithEvents(p events.Publisher) Option {
	return func(l *Ledger) { l.events = p }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.log = log.Named("ledger") }
}

func (l *Ledger) apply(opts []Option) {
	l.clock = clock.NewManual(0)
	l.events = events.Discard{}
	l.log = zap.NewNop()
	for _, opt := range opts {
		opt(l)
	}
}

// wire builds the engines on top of an already populated registry and
// fungible ledger.
func (l *Ledger) wire(params economy.Params, rate *uint256.Int) {
	l.staking = staking.New(l.registry, l.tokens, rate)
	l.economy = economy.New(l.roles, l.registry, l.tokens, params)
	l.market = market.New(l.registry, l.tokens)
}

// New creates a ledger from genesis.
func New(g Genesis, opts ...Option) (*Ledger, error) {
	if g.Admin == types.ZeroAddress {
		return nil, fmt.Errorf("genesis: admin address is required")
	}
	l := &Ledger{roles: access.NewRoles(g.Admin)}
	l.apply(opts)

	setupRoles(l.roles, g.Admin)
	l.registry = registry.New(l.roles)
	l.registry.SetMaxBatch(g.MaxBatch)
	l.tokens = fungible.New(l.roles)
	l.wire(g.economyParams(), g.stakingRate())

	if err := g.seed(l); err != nil {
		return nil, err
	}
	l.log.Info("ledger initialised from genesis",
		zap.String("admin", string(g.Admin)),
		zap.Int("balances", len(g.Balances)),
		zap.Int("base_mints", len(g.BaseMints)))
	return l, nil
}

// setupRoles installs the grants every ledger starts with.
func setupRoles(roles *access.Roles, admin types.Address) {
	roles.Setup(access.TokenMinter(types.TokenReward), types.StakingModule)
	roles.Setup(access.TokenMinter(types.TokenReward), types.EconomyModule)
	roles.Setup(access.TokenBurner(types.TokenReward), types.EconomyModule)
	roles.Setup(access.TokenMinter(types.TokenReceipt), types.StakingModule)
	roles.Setup(access.TokenBurner(types.TokenReceipt), types.StakingModule)
	roles.Setup(access.CollectionMinter(types.CollectionEvolved), types.EconomyModule)
	roles.Setup(access.CollectionMinter(types.CollectionBase), admin)
}

// Roles returns the role table.
func (l *Ledger) Roles() *access.Roles { return l.roles }

// Registry returns the asset registry.
func (l *Ledger) Registry() *registry.Registry { return l.registry }

// Tokens returns the fungible ledger.
func (l *Ledger) Tokens() *fungible.Ledger { return l.tokens }

// Staking returns the staking engine.
func (l *Ledger) Staking() *staking.Engine { return l.staking }

// Economy returns the economy engine.
func (l *Ledger) Economy() *economy.Engine { return l.economy }

// Market returns the marketplace.
func (l *Ledger) Market() *market.Market { return l.market }

// Now returns the ledger clock reading.
func (l *Ledger) Now() int64 { return l.clock.Now() }

// Height returns the height of the block being executed.
func (l *Ledger) Height() int64 { return l.height }

// SetHeight records the height of the block being executed.
func (l *Ledger) SetHeight(h int64) { l.height = h }
