package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oasis.ledger/oasis/internal/identity"
	"oasis.ledger/oasis/internal/types"
)

// txSpec describes one transaction subcommand. build turns positional
// arguments into the payload and attached native value.
type txSpec struct {
	use   string
	short string
	args  cobra.PositionalArgs
	typ   types.TransactionType
	build func(args []string) (payload any, value *uint256.Int, err error)
}

var txSpecs = []txSpec{
	{
		use:   "approve <operator>",
		short: "Approve (or with --revoke, withdraw) an operator for all of your assets",
		args:  cobra.ExactArgs(1),
		typ:   types.TxApproveCustody,
		// build is set in newTxCmd since it reads --revoke
	},
	{
		use:   "transfer-asset <collection> <id> <to>",
		short: "Transfer a free asset",
		args:  cobra.ExactArgs(3),
		typ:   types.TxTransferAsset,
		build: func(args []string) (any, *uint256.Int, error) {
			c, err := parseCollection(args[0])
			if err != nil {
				return nil, nil, err
			}
			id, err := parseID(args[1])
			if err != nil {
				return nil, nil, err
			}
			to, err := parseAccount(args[2])
			if err != nil {
				return nil, nil, err
			}
			return types.TransferAssetPayload{Collection: c, AssetID: id, To: to}, nil, nil
		},
	},
	{
		use:   "transfer <token> <to> <amount>",
		short: "Transfer fungible tokens",
		args:  cobra.ExactArgs(3),
		typ:   types.TxTransferToken,
		build: func(args []string) (any, *uint256.Int, error) {
			token, to, amount, err := tokenArgs(args)
			if err != nil {
				return nil, nil, err
			}
			return types.TransferTokenPayload{Token: token, To: to, Amount: amount}, nil, nil
		},
	},
	{
		use:   "mint-token <token> <to> <amount>",
		short: "Mint fungible tokens (requires the token minter role)",
		args:  cobra.ExactArgs(3),
		typ:   types.TxMintToken,
		build: func(args []string) (any, *uint256.Int, error) {
			token, to, amount, err := tokenArgs(args)
			if err != nil {
				return nil, nil, err
			}
			return types.MintTokenPayload{Token: token, To: to, Amount: amount}, nil, nil
		},
	},
	{
		use:   "burn-token <token> <from> <amount>",
		short: "Burn fungible tokens (requires the token burner role)",
		args:  cobra.ExactArgs(3),
		typ:   types.TxBurnToken,
		build: func(args []string) (any, *uint256.Int, error) {
			token, from, amount, err := tokenArgs(args)
			if err != nil {
				return nil, nil, err
			}
			return types.BurnTokenPayload{Token: token, From: from, Amount: amount}, nil, nil
		},
	},
	{
		use:   "mint-base <to> <count>",
		short: "Mint base assets (requires the base collection minter role)",
		args:  cobra.ExactArgs(2),
		typ:   types.TxMintBase,
		build: func(args []string) (any, *uint256.Int, error) {
			to, err := parseAccount(args[0])
			if err != nil {
				return nil, nil, err
			}
			n, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("count %q: %w", args[1], err)
			}
			return types.MintBasePayload{To: to, Count: n}, nil, nil
		},
	},
	{
		use:   "stake <id>...",
		short: "Stake evolved assets",
		args:  cobra.MinimumNArgs(1),
		typ:   types.TxStake,
		build: assetBatch,
	},
	{
		use:   "unstake <id>...",
		short: "Unstake evolved assets, settling their rewards",
		args:  cobra.MinimumNArgs(1),
		typ:   types.TxUnstake,
		build: assetBatch,
	},
	{
		use:   "claim",
		short: "Claim pending staking rewards",
		args:  cobra.NoArgs,
		typ:   types.TxClaimRewards,
		build: func([]string) (any, *uint256.Int, error) { return nil, nil, nil },
	},
	{
		use:   "mint-evolved <quantity>",
		short: "Mint evolved assets and receive the mint reward",
		args:  cobra.ExactArgs(1),
		typ:   types.TxMintEvolved,
		build: quantity,
	},
	{
		use:   "burn-base <id>...",
		short: "Burn base assets for reward tokens",
		args:  cobra.MinimumNArgs(1),
		typ:   types.TxBurnBase,
		build: assetBatch,
	},
	{
		use:   "buy-reward <quantity> <payment>",
		short: "Buy whole reward tokens, attaching payment in native tokens",
		args:  cobra.ExactArgs(2),
		typ:   types.TxBuyRewardToken,
		build: func(args []string) (any, *uint256.Int, error) {
			payload, _, err := quantity(args[:1])
			if err != nil {
				return nil, nil, err
			}
			paid, err := parseAmount(args[1])
			if err != nil {
				return nil, nil, err
			}
			return payload, paid, nil
		},
	},
	{
		use:   "withdraw <to> <amount>",
		short: "Withdraw native tokens from the treasury (admin)",
		args:  cobra.ExactArgs(2),
		typ:   types.TxWithdrawTreasury,
		build: func(args []string) (any, *uint256.Int, error) {
			to, err := parseAccount(args[0])
			if err != nil {
				return nil, nil, err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return nil, nil, err
			}
			return types.WithdrawPayload{To: to, Amount: amount}, nil, nil
		},
	},
	{
		use:   "list <collection> <id> <price>",
		short: "List an asset on the marketplace for reward tokens",
		args:  cobra.ExactArgs(3),
		typ:   types.TxListAsset,
		build: func(args []string) (any, *uint256.Int, error) {
			c, err := parseCollection(args[0])
			if err != nil {
				return nil, nil, err
			}
			id, err := parseID(args[1])
			if err != nil {
				return nil, nil, err
			}
			price, err := parseAmount(args[2])
			if err != nil {
				return nil, nil, err
			}
			return types.ListAssetPayload{Collection: c, AssetID: id, Price: price}, nil, nil
		},
	},
	{
		use:   "buy <listing-id>",
		short: "Buy a listed asset",
		args:  cobra.ExactArgs(1),
		typ:   types.TxBuyAsset,
		build: func(args []string) (any, *uint256.Int, error) {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("listing id %q: %w", args[0], err)
			}
			return types.BuyAssetPayload{ListingID: types.ListingID(id)}, nil, nil
		},
	},
	{
		use:   "grant-role <role> <account>",
		short: "Grant a role (admin)",
		args:  cobra.ExactArgs(2),
		typ:   types.TxGrantRole,
		build: rolePayload,
	},
	{
		use:   "revoke-role <role> <account>",
		short: "Revoke a role (admin)",
		args:  cobra.ExactArgs(2),
		typ:   types.TxRevokeRole,
		build: rolePayload,
	},
}

// tokenArgs parses <token> <account> <amount>.
func tokenArgs(args []string) (types.Token, types.Address, *uint256.Int, error) {
	token := types.Token(args[0])
	if !token.Valid() {
		return "", "", nil, fmt.Errorf("%s: %w", args[0], types.ErrUnknownToken)
	}
	account, err := parseAccount(args[1])
	if err != nil {
		return "", "", nil, err
	}
	amount, err := parseAmount(args[2])
	if err != nil {
		return "", "", nil, err
	}
	return token, account, amount, nil
}

func assetBatch(args []string) (any, *uint256.Int, error) {
	ids := make([]types.AssetID, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
	}
	return types.AssetBatchPayload{AssetIDs: ids}, nil, nil
}

func quantity(args []string) (any, *uint256.Int, error) {
	n, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("quantity %q: %w", args[0], err)
	}
	return types.QuantityPayload{Quantity: n}, nil, nil
}

func rolePayload(args []string) (any, *uint256.Int, error) {
	account, err := parseAccount(args[1])
	if err != nil {
		return nil, nil, err
	}
	return types.RolePayload{Role: args[0], Account: account}, nil, nil
}

func parseCollection(s string) (types.Collection, error) {
	c := types.Collection(s)
	if !c.Valid() {
		return "", fmt.Errorf("%s: %w", s, types.ErrUnknownCollection)
	}
	return c, nil
}

func parseID(s string) (types.AssetID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("asset id %q: %w", s, err)
	}
	return types.AssetID(id), nil
}

// moduleAccounts lets operators and recipients be named by module.
var moduleAccounts = map[string]types.Address{
	"staking":   types.StakingModule,
	"economy":   types.EconomyModule,
	"market":    types.MarketModule,
	"graveyard": types.GraveyardModule,
}

func parseAccount(s string) (types.Address, error) {
	if a, ok := moduleAccounts[s]; ok {
		return a, nil
	}
	return identity.ParseAddress(s)
}

func newTxCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Sign and submit ledger transactions",
		Long: `Sign a transaction with the node key and broadcast it through the
Tendermint RPC endpoint. Token amounts are whole tokens with up to 18
decimals. Module accounts can be named: staking, economy, market.`,
	}

	var (
		commit bool
		nonce  int64
		revoke bool
	)
	cmd.PersistentFlags().BoolVar(&commit, "commit", false, "wait until the transaction is committed")
	cmd.PersistentFlags().Int64Var(&nonce, "nonce", -1, "nonce to use (default: query the chain)")

	for _, spec := range txSpecs {
		spec := spec // per-iteration copy (go1.21 loop semantics)
		if spec.typ == types.TxApproveCustody {
			spec.build = func(args []string) (any, *uint256.Int, error) {
				op, err := parseAccount(args[0])
				if err != nil {
					return nil, nil, err
				}
				return types.ApproveCustodyPayload{Operator: op, Approved: !revoke}, nil, nil
			}
		}
		sub := &cobra.Command{
			Use:   spec.use,
			Short: spec.short,
			Args:  spec.args,
			RunE: func(cmd *cobra.Command, args []string) error {
				payload, value, err := spec.build(args)
				if err != nil {
					return err
				}
				return g.submit(cmd, spec.typ, payload, value, nonce, commit)
			},
		}
		if spec.typ == types.TxApproveCustody {
			sub.Flags().BoolVar(&revoke, "revoke", false, "withdraw the approval")
		}
		cmd.AddCommand(sub)
	}
	return cmd
}

// submit signs a transaction with the node key and broadcasts it.
func (g *globals) submit(cmd *cobra.Command, typ types.TransactionType, payload any, value *uint256.Int, nonce int64, commit bool) error {
	ctx := cmd.Context()
	id, err := identity.LoadIdentity(g.homePath(g.cfg.Node.KeyFile))
	if err != nil {
		return fmt.Errorf("load key (run 'oasis keys generate' first): %w", err)
	}
	client, err := g.newClient(g.cfg)
	if err != nil {
		return err
	}

	if nonce < 0 {
		raw, err := client.Query(ctx, "nonce/"+string(id.Address()))
		if err != nil {
			return fmt.Errorf("query nonce: %w", err)
		}
		var next uint64
		if err := json.Unmarshal(raw, &next); err != nil {
			return fmt.Errorf("decode nonce: %w", err)
		}
		nonce = int64(next)
	}

	tx := &types.Transaction{
		ID:        uuid.NewString(),
		Type:      typ,
		Nonce:     uint64(nonce),
		Timestamp: time.Now().UTC(),
		Value:     value,
	}
	if payload != nil {
		if tx.Payload, err = json.Marshal(payload); err != nil {
			return err
		}
	}
	stx, err := id.SignTransaction(tx)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	raw, err := json.Marshal(stx)
	if err != nil {
		return err
	}

	broadcast := client.BroadcastTxSync
	if commit {
		broadcast = client.BroadcastTxCommit
	}
	res, err := broadcast(ctx, raw)
	if err != nil {
		return err
	}
	g.log.Debug("transaction broadcast",
		zap.String("id", tx.ID),
		zap.String("type", string(typ)),
		zap.Uint64("nonce", tx.Nonce))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "tx %s (%s, nonce %d)\nhash: %s\n", tx.ID, typ, tx.Nonce, res.Hash)
	if !res.OK() {
		return fmt.Errorf("rejected with code %d: %s", res.Code, res.Log)
	}
	if len(res.Data) > 0 {
		fmt.Fprintf(out, "result: %s\n", res.Data)
	}
	if res.Height > 0 {
		fmt.Fprintf(out, "committed at height %d\n", res.Height)
	}
	return nil
}
