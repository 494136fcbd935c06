package api

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"oasis.ledger/oasis/internal/types"
)

const maxTxBytes = 1 << 20

// @Title: Submit Transaction
// @Route: POST /api/tx
// @Description: Relay a signed transaction to consensus; returns once CheckTx has run
// @Response: {"hash": "...", "code": 0, "log": ""}
func (s *Service) HandleSubmitTx(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.broadcaster == nil {
		s.writeError(w, http.StatusNotImplemented, "Transaction relay is disabled")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxTxBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	var stx types.SignedTransaction
	if err := json.Unmarshal(raw, &stx); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid signed transaction")
		return
	}
	if !stx.Verify() {
		s.writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	res, err := s.broadcaster.BroadcastTxSync(r.Context(), raw)
	if err != nil {
		s.log.Warn("broadcast failed", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	status := http.StatusAccepted
	if res.Code != 0 {
		status = http.StatusUnprocessableEntity
	}
	s.log.Info("relayed transaction",
		zap.String("signer", string(stx.Signer())),
		zap.String("hash", res.Hash),
		zap.Uint32("code", res.Code))
	s.writeJSON(w, status, res)
}
