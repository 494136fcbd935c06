package abci

import (
	"github.com/holiman/uint256"

	"oasis.ledger/oasis/internal/ledger"
	"oasis.ledger/oasis/internal/metrics"
	"oasis.ledger/oasis/internal/types"
)

// SupplyMetrics reads the issuance gauges exported on /metrics.
func (app *ABCIApplication) SupplyMetrics() metrics.Supply {
	s := metrics.Supply{
		Tokens: make(map[types.Token]*uint256.Int, len(types.AllTokens)),
		Assets: make(map[types.Collection]map[types.CustodyState]uint64, len(types.Collections)),
	}
	app.View(func(l *ledger.Ledger) {
		for _, t := range types.AllTokens {
			s.Tokens[t] = l.Tokens().TotalSupply(t)
		}
		for _, c := range types.Collections {
			states := make(map[types.CustodyState]uint64)
			l.Registry().Each(c, func(a types.Asset) {
				states[a.Custody.State]++
			})
			s.Assets[c] = states
		}
		s.Listings = len(l.Market().ActiveListings())
	})
	return s
}
