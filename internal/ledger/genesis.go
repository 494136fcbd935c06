package ledger

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/holiman/uint256"

	"oasis.ledger/oasis/internal/access"
	"oasis.ledger/oasis/internal/economy"
	"oasis.ledger/oasis/internal/staking"
	"oasis.ledger/oasis/internal/types"
)

// Genesis is the initial ledger state.
type Genesis struct {
	Admin     types.Address    `json:"admin"`
	Economy   EconomyGenesis   `json:"economy"`
	Staking   StakingGenesis   `json:"staking"`
	Balances  []GenesisBalance `json:"balances,omitempty"`
	BaseMints []GenesisMint    `json:"base_mints,omitempty"`
	// MaxBatch limits the assets one request may mint or move; zero means
	// registry.DefaultMaxBatch.
	MaxBatch uint64 `json:"max_batch,omitempty"`
}

// EconomyGenesis holds economy amounts in whole tokens.
type EconomyGenesis struct {
	MintReward    uint64       `json:"mint_reward"`
	BurnReward    uint64       `json:"burn_reward"`
	PricePerToken *uint256.Int `json:"price_per_token,omitempty"` // base units of native value
}

// StakingGenesis holds the accrual rate.
type StakingGenesis struct {
	RewardPerDay uint64 `json:"reward_per_day"` // whole reward tokens per asset per day
}

// GenesisBalance credits an account with whole tokens.
type GenesisBalance struct {
	Account types.Address `json:"account"`
	Token   types.Token   `json:"token"`
	Amount  uint64        `json:"amount"`
}

// GenesisMint mints base assets to an account.
type GenesisMint struct {
	To    types.Address `json:"to"`
	Count uint64        `json:"count"`
}

// DefaultGenesis returns a genesis with default economy amounts.
func DefaultGenesis(admin types.Address) Genesis {
	return Genesis{
		Admin: admin,
		Economy: EconomyGenesis{
			MintReward: economy.DefaultMintReward,
			BurnReward: economy.DefaultBurnReward,
		},
		Staking: StakingGenesis{RewardPerDay: DefaultRewardPerDay},
	}
}

// DefaultRewardPerDay is the default staking rate in whole tokens.
const DefaultRewardPerDay = 864

// LoadGenesis reads a JSON genesis file.
func LoadGenesis(path string) (Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, fmt.Errorf("failed to read genesis: %w", err)
	}
	return ParseGenesis(data)
}

// ParseGenesis decodes a JSON genesis document.
func ParseGenesis(data []byte) (Genesis, error) {
	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return Genesis{}, fmt.Errorf("failed to decode genesis: %w", err)
	}
	return g, nil
}

func (g Genesis) economyParams() economy.Params {
	p := economy.Params{
		MintReward:    types.Tokens(g.Economy.MintReward),
		BurnReward:    types.Tokens(g.Economy.BurnReward),
		PricePerToken: g.Economy.PricePerToken,
	}
	if p.PricePerToken == nil {
		p.PricePerToken = types.Unit()
	}
	return p
}

func (g Genesis) stakingRate() *uint256.Int {
	return staking.RateFromDaily(g.Staking.RewardPerDay)
}

// genesisMinter holds temporary mint grants while genesis balances are
// credited.
var genesisMinter = types.ModuleAddress("genesis")

// seed applies balances and mints through the normal role checked paths.
func (g Genesis) seed(l *Ledger) error {
	for _, t := range []types.Token{types.TokenReward, types.TokenNative} {
		l.roles.Setup(access.TokenMinter(t), genesisMinter)
		defer func(t types.Token) {
			_ = l.roles.Revoke(g.Admin, access.TokenMinter(t), genesisMinter)
		}(t)
	}
	for _, b := range g.Balances {
		if !b.Token.Valid() || b.Token == types.TokenReceipt {
			return fmt.Errorf("genesis balance for %s: %w", b.Account, types.ErrUnknownToken)
		}
		if err := l.tokens.Mint(genesisMinter, b.Token, b.Account, types.Tokens(b.Amount)); err != nil {
			return fmt.Errorf("genesis balance for %s: %w", b.Account, err)
		}
	}
	for _, m := range g.BaseMints {
		for left := m.Count; left > 0; {
			n := min(left, l.registry.MaxBatch())
			if _, err := l.registry.Mint(g.Admin, types.CollectionBase, m.To, n); err != nil {
				return fmt.Errorf("genesis mint to %s: %w", m.To, err)
			}
			left -= n
		}
	}
	return nil
}
