package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/holiman/uint256"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"oasis.ledger/oasis/internal/ledger"
	"oasis.ledger/oasis/internal/types"
)

func newQueryCmd(g *globals) *cobra.Command {
	var printJSON bool
	cmd := &cobra.Command{
		Use:     "query",
		Aliases: []string{"q"},
		Short:   "Query ledger state through Tendermint",
	}
	cmd.PersistentFlags().BoolVar(&printJSON, "json", false, "print the raw JSON answer")

	add := func(use, short string, args cobra.PositionalArgs, path func([]string) string, render func(io.Writer, []byte) error) {
		cmd.AddCommand(&cobra.Command{
			Use:   use,
			Short: short,
			Args:  args,
			RunE: func(cmd *cobra.Command, args []string) error {
				raw, err := g.query(cmd, path(args))
				if err != nil {
					return err
				}
				if printJSON || render == nil {
					return printIndented(cmd.OutOrStdout(), raw)
				}
				return render(cmd.OutOrStdout(), raw)
			},
		})
	}

	add("account <address>", "Balances, owned and staked assets of an account", cobra.ExactArgs(1),
		func(a []string) string { return "account/" + a[0] }, renderAccount)
	add("asset <collection> <id>", "Custody of an asset", cobra.ExactArgs(2),
		func(a []string) string { return "asset/" + a[0] + "/" + a[1] }, nil)
	add("balance <token> <address>", "Token balance of an account", cobra.ExactArgs(2),
		func(a []string) string { return "balance/" + a[0] + "/" + a[1] }, renderAmount)
	add("staked <address>", "Assets staked by an account", cobra.ExactArgs(1),
		func(a []string) string { return "staked/" + a[0] }, nil)
	add("pending <address>", "Rewards a claim would mint now", cobra.ExactArgs(1),
		func(a []string) string { return "pending/" + a[0] }, renderAmount)
	add("listing <id>", "A marketplace listing", cobra.ExactArgs(1),
		func(a []string) string { return "listing/" + a[0] }, nil)
	add("listings", "Open marketplace listings", cobra.NoArgs,
		func([]string) string { return "listings" }, renderListings)
	add("supply", "Token supply, collection issuance and treasury", cobra.NoArgs,
		func([]string) string { return "supply" }, renderSupply)
	add("nonce <address>", "Next nonce expected from an account", cobra.ExactArgs(1),
		func(a []string) string { return "nonce/" + a[0] }, nil)

	return cmd
}

func (g *globals) query(cmd *cobra.Command, path string) ([]byte, error) {
	client, err := g.newClient(g.cfg)
	if err != nil {
		return nil, err
	}
	return client.Query(cmd.Context(), path)
}

func printIndented(w io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, buf.String())
	return err
}

func renderAmount(w io.Writer, raw []byte) error {
	var amount uint256.Int
	if err := json.Unmarshal(raw, &amount); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, formatAmount(&amount))
	return err
}

func renderAccount(w io.Writer, raw []byte) error {
	var view ledger.AccountView
	if err := json.Unmarshal(raw, &view); err != nil {
		return err
	}
	fmt.Fprintf(w, "Account %s\n\n", view.Address)

	table := tablewriter.NewWriter(w)
	table.Header("Token", "Balance")
	for _, t := range types.AllTokens {
		_ = table.Append([]string{string(t), formatAmount(view.Balances[t])})
	}
	_ = table.Append([]string{"pending rewards", formatAmount(view.Pending)})
	_ = table.Render()

	fmt.Fprintln(w)
	assets := tablewriter.NewWriter(w)
	assets.Header("Collection", "Free", "Staked")
	for _, c := range types.Collections {
		staked := ""
		if c == types.CollectionEvolved {
			staked = joinIDs(view.Staked)
		}
		_ = assets.Append([]string{string(c), joinIDs(view.Owned[c]), staked})
	}
	return assets.Render()
}

func renderListings(w io.Writer, raw []byte) error {
	var listings []types.Listing
	if err := json.Unmarshal(raw, &listings); err != nil {
		return err
	}
	if len(listings) == 0 {
		_, err := fmt.Fprintln(w, "no open listings")
		return err
	}
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Asset", "Price", "Seller")
	for _, l := range listings {
		_ = table.Append([]string{
			strconv.FormatUint(uint64(l.ID), 10),
			fmt.Sprintf("%s/%d", l.Collection, l.AssetID),
			formatAmount(l.Price),
			string(l.Seller),
		})
	}
	return table.Render()
}

func renderSupply(w io.Writer, raw []byte) error {
	var supply ledger.SupplyView
	if err := json.Unmarshal(raw, &supply); err != nil {
		return err
	}

	tokens := tablewriter.NewWriter(w)
	tokens.Header("Token", "Supply", "Minted", "Burned")
	for _, t := range types.AllTokens {
		s := supply.Tokens[t]
		_ = tokens.Append([]string{string(t), formatAmount(s.Supply), formatAmount(s.Minted), formatAmount(s.Burned)})
	}
	_ = tokens.Render()

	fmt.Fprintln(w)
	colls := tablewriter.NewWriter(w)
	colls.Header("Collection", "Minted", "Retired")
	names := make([]string, 0, len(supply.Collections))
	for c := range supply.Collections {
		names = append(names, string(c))
	}
	sort.Strings(names)
	for _, name := range names {
		c := supply.Collections[types.Collection(name)]
		_ = colls.Append([]string{name, strconv.FormatUint(c.Minted, 10), strconv.FormatUint(c.Retired, 10)})
	}
	_ = colls.Render()

	_, err := fmt.Fprintf(w, "\nlistings: %d (%d open)\ntreasury: %s native\n",
		supply.Listings, supply.Active, formatAmount(supply.Treasury))
	return err
}

func joinIDs(ids []types.AssetID) string {
	var b bytes.Buffer
	for i, id := range ids {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(id.String())
	}
	return b.String()
}
