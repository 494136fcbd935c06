// Package tendermint connects the node to a Tendermint process: the ABCI
// socket server Tendermint drives, and an RPC client used to submit signed
// ledger transactions and run ABCI queries.
package tendermint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rpchttp "github.com/tendermint/tendermint/rpc/client/http"
	tmtypes "github.com/tendermint/tendermint/types"

	"oasis.ledger/oasis/internal/types"
)

// DefaultRPCAddr is the local Tendermint RPC endpoint.
const DefaultRPCAddr = "http://127.0.0.1:26657"

// Result is the outcome of a broadcast.
type Result struct {
	Hash   string `json:"hash"`
	Code   uint32 `json:"code"`
	Log    string `json:"log,omitempty"`
	Data   []byte `json:"data,omitempty"`
	Height int64  `json:"height,omitempty"` // set once committed
}

// OK reports whether the transaction was accepted.
func (r *Result) OK() bool { return r.Code == 0 }

// BroadcastClient wraps a Tendermint RPC client for broadcasting transactions.
type BroadcastClient struct {
	rpc *rpchttp.HTTP
}

// NewBroadcastClient creates a client for the RPC endpoint at rpcAddr.
func NewBroadcastClient(rpcAddr string, timeout time.Duration) (*BroadcastClient, error) {
	if rpcAddr == "" {
		rpcAddr = DefaultRPCAddr
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	seconds := uint(timeout / time.Second)
	if seconds == 0 {
		seconds = 1
	}
	rpc, err := rpchttp.NewWithTimeout(rpcAddr, "/websocket", seconds)
	if err != nil {
		return nil, fmt.Errorf("create rpc client for %s: %w", rpcAddr, err)
	}
	return &BroadcastClient{rpc: rpc}, nil
}

// BroadcastTxSync broadcasts a transaction and returns once CheckTx has run.
// A non-zero Code in the result is a CheckTx rejection, not an error.
func (bc *BroadcastClient) BroadcastTxSync(ctx context.Context, tx []byte) (*Result, error) {
	res, err := bc.rpc.BroadcastTxSync(ctx, tmtypes.Tx(tx))
	if err != nil {
		return nil, fmt.Errorf("broadcast_tx_sync: %w", err)
	}
	return &Result{Hash: res.Hash.String(), Code: res.Code, Log: res.Log, Data: res.Data}, nil
}

// BroadcastTxCommit broadcasts a transaction and waits for it to be
// committed. The result carries the CheckTx rejection if there was one,
// otherwise the DeliverTx outcome.
func (bc *BroadcastClient) BroadcastTxCommit(ctx context.Context, tx []byte) (*Result, error) {
	res, err := bc.rpc.BroadcastTxCommit(ctx, tmtypes.Tx(tx))
	if err != nil {
		return nil, fmt.Errorf("broadcast_tx_commit: %w", err)
	}
	if res.CheckTx.Code != 0 {
		return &Result{Hash: res.Hash.String(), Code: res.CheckTx.Code, Log: res.CheckTx.Log}, nil
	}
	return &Result{
		Hash:   res.Hash.String(),
		Code:   res.DeliverTx.Code,
		Log:    res.DeliverTx.Log,
		Data:   res.DeliverTx.Data,
		Height: res.Height,
	}, nil
}

// BroadcastSignedTransaction encodes signedTx and broadcasts it, waiting for
// the commit when commit is set.
func (bc *BroadcastClient) BroadcastSignedTransaction(ctx context.Context, signedTx *types.SignedTransaction, commit bool) (*Result, error) {
	txBytes, err := json.Marshal(signedTx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction: %w", err)
	}
	if commit {
		return bc.BroadcastTxCommit(ctx, txBytes)
	}
	return bc.BroadcastTxSync(ctx, txBytes)
}

// Query runs an ABCI query against the application and returns its value.
func (bc *BroadcastClient) Query(ctx context.Context, path string) ([]byte, error) {
	res, err := bc.rpc.ABCIQuery(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("abci_query %s: %w", path, err)
	}
	if res.Response.Code != 0 {
		return nil, fmt.Errorf("query %s failed with code %d: %s", path, res.Response.Code, res.Response.Log)
	}
	return res.Response.Value, nil
}
