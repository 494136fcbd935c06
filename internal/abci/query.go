package abci

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	abci "github.com/tendermint/tendermint/abci/types"

	"oasis.ledger/oasis/internal/ledger"
	"oasis.ledger/oasis/internal/types"
)

// ErrNotFound is returned by queries naming something the ledger does not
// hold.
var ErrNotFound = errors.New("not found")

// ErrBadQuery is returned for malformed query paths.
var ErrBadQuery = errors.New("bad query")

// Query paths, each followed by its slash separated arguments:
//
//	asset/<collection>/<id>
//	balance/<token>/<address>
//	account/<address>
//	staked/<address>
//	pending/<address>
//	listing/<id>
//	listings
//	supply
//	nonce/<address>
//
// Answers reflect the last committed block, which is also the height
// reported; transactions of a block in progress are not visible.
func (app *ABCIApplication) Query(req abci.RequestQuery) abci.ResponseQuery {
	value, err := app.QueryPath(req.Path)
	height := app.Status().Height
	if err != nil {
		code := CodeFor(err)
		switch {
		case errors.Is(err, ErrNotFound):
			code = CodeTypeNotFound
		case errors.Is(err, ErrBadQuery):
			code = CodeTypeInvalidTx
		}
		return abci.ResponseQuery{Code: code, Log: err.Error(), Height: height}
	}
	return abci.ResponseQuery{Code: CodeTypeOK, Key: []byte(req.Path), Value: value, Height: height}
}

// QueryPath answers a query path with JSON.
func (app *ABCIApplication) QueryPath(path string) ([]byte, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	route, args := parts[0], parts[1:]

	want := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s takes %d arguments: %w", route, n, ErrBadQuery)
		}
		return nil
	}

	var (
		result any
		err    error
	)
	switch route {
	case "asset":
		if err = want(2); err != nil {
			return nil, err
		}
		var id uint64
		if id, err = strconv.ParseUint(args[1], 10, 64); err != nil {
			return nil, fmt.Errorf("asset id %q: %w", args[1], ErrBadQuery)
		}
		app.View(func(l *ledger.Ledger) {
			result, err = l.Registry().Asset(types.Collection(args[0]), types.AssetID(id))
		})

	case "balance":
		if err = want(2); err != nil {
			return nil, err
		}
		token := types.Token(args[0])
		if !token.Valid() {
			return nil, fmt.Errorf("%s: %w", token, types.ErrUnknownToken)
		}
		app.View(func(l *ledger.Ledger) {
			result = l.Tokens().BalanceOf(token, types.Address(args[1]))
		})

	case "account":
		if err = want(1); err != nil {
			return nil, err
		}
		app.View(func(l *ledger.Ledger) {
			result, err = l.Account(types.Address(args[0]))
		})

	case "staked":
		if err = want(1); err != nil {
			return nil, err
		}
		app.View(func(l *ledger.Ledger) {
			result = l.Staking().StakedAssets(types.Address(args[0]))
		})

	case "pending":
		if err = want(1); err != nil {
			return nil, err
		}
		app.View(func(l *ledger.Ledger) {
			result, err = l.Staking().PendingRewards(types.Address(args[0]), l.Now())
		})

	case "listing":
		if err = want(1); err != nil {
			return nil, err
		}
		var id uint64
		if id, err = strconv.ParseUint(args[0], 10, 64); err != nil {
			return nil, fmt.Errorf("listing id %q: %w", args[0], ErrBadQuery)
		}
		app.View(func(l *ledger.Ledger) {
			listing, ok := l.Market().Listing(types.ListingID(id))
			if !ok {
				err = fmt.Errorf("listing %d: %w", id, ErrNotFound)
				return
			}
			result = listing
		})

	case "listings":
		app.View(func(l *ledger.Ledger) {
			result = l.Market().ActiveListings()
		})

	case "supply":
		app.View(func(l *ledger.Ledger) {
			result = l.Supply()
		})

	case "nonce":
		if err = want(1); err != nil {
			return nil, err
		}
		result = app.Nonce(types.Address(args[0]))

	default:
		return nil, fmt.Errorf("unknown query %q: %w", route, ErrBadQuery)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}
