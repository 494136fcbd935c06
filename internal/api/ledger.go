package api

import (
	"net/http"
	"strings"
)

// query answers a ledger query path built from URL parameters. Every named
// parameter is required.
func (s *Service) query(w http.ResponseWriter, r *http.Request, route string, params ...string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := []string{route}
	for _, p := range params {
		v := strings.TrimSpace(r.URL.Query().Get(p))
		if v == "" || strings.Contains(v, "/") {
			s.writeError(w, http.StatusBadRequest, "Missing or invalid '"+p+"' query parameter")
			return
		}
		parts = append(parts, v)
	}

	body, err := s.node.QueryPath(strings.Join(parts, "/"))
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeRaw(w, body)
}

// @Title: Get Account
// @Route: GET /api/account?address=...
// @Description: Balances, owned assets, staked assets and pending rewards of an account
// @Response: AccountView object
func (s *Service) HandleAccount(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, "account", "address")
}

// @Title: Get Asset
// @Route: GET /api/asset?collection=...&id=...
// @Description: Custody of a single asset
// @Response: Asset object
func (s *Service) HandleAsset(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, "asset", "collection", "id")
}

// @Title: Get Balance
// @Route: GET /api/balance?token=...&address=...
// @Description: Token balance of an account in base units
// @Response: "1000000000000000000"
func (s *Service) HandleBalance(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, "balance", "token", "address")
}

// @Title: Get Staked Assets
// @Route: GET /api/staked?address=...
// @Description: Evolved asset ids staked by an account
// @Response: [1, 2, 3]
func (s *Service) HandleStaked(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, "staked", "address")
}

// @Title: Get Pending Rewards
// @Route: GET /api/pending?address=...
// @Description: Rewards a claim would mint at the current block time
// @Response: "0"
func (s *Service) HandlePending(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, "pending", "address")
}

// @Title: Get Listing
// @Route: GET /api/listing?id=...
// @Description: A marketplace listing, active or sold
// @Response: Listing object
func (s *Service) HandleListing(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, "listing", "id")
}

// @Title: Get Active Listings
// @Route: GET /api/listings
// @Description: Every open marketplace listing ordered by id
// @Response: Array of Listing objects
func (s *Service) HandleListings(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, "listings")
}

// @Title: Get Supply
// @Route: GET /api/supply
// @Description: Token supply counters, collection issuance, listings and treasury
// @Response: SupplyView object
func (s *Service) HandleSupply(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, "supply")
}

// @Title: Get Nonce
// @Route: GET /api/nonce?address=...
// @Description: Next transaction nonce expected from an account
// @Response: 0
func (s *Service) HandleNonce(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, "nonce", "address")
}
