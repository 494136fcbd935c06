package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const annotated = `package api

// @Title: Get Supply
// @Route: GET /api/supply
// @Description: Token supply counters
// @Response: SupplyView object
func (s *Service) HandleSupply() {}

// @Title: Incomplete
// @Description: no route, skipped
// @Response: nothing

// @Title: Submit Transaction
// @Route: POST /api/tx
// @Response: {"hash": "..."}
func (s *Service) HandleSubmitTx() {}
`

func TestParse(t *testing.T) {
	endpoints, err := parse(strings.NewReader(annotated))
	require.NoError(t, err)
	require.Len(t, endpoints, 2)

	assert.Equal(t, "Get Supply", endpoints[0].Title)
	assert.Equal(t, "GET", endpoints[0].Method())
	assert.Equal(t, "/api/supply", endpoints[0].Path())
	assert.Equal(t, "Token supply counters", endpoints[0].Description)

	assert.Equal(t, "POST", endpoints[1].Method())
	assert.Empty(t, endpoints[1].Description)
}

func TestEndpointPathDropsQuery(t *testing.T) {
	ep := Endpoint{Route: "GET /api/balance?token=...&address=..."}
	assert.Equal(t, "/api/balance", ep.Path())
}

func TestParseAPIPackage(t *testing.T) {
	endpoints, err := parseDir("../../internal/api")
	require.NoError(t, err)

	routes := make(map[string]bool, len(endpoints))
	for _, ep := range endpoints {
		routes[ep.Method()+" "+ep.Path()] = true
	}
	for _, want := range []string{"GET /api/health", "GET /api/account", "POST /api/tx", "POST /api/backup"} {
		assert.True(t, routes[want], want)
	}
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	writeMarkdown(&buf, []Endpoint{{Title: "Get Nonce", Route: "GET /api/nonce?address=...", Response: "0"}})

	out := buf.String()
	assert.Contains(t, out, "| GET | `/api/nonce` | Get Nonce |")
	assert.Contains(t, out, "## Get Nonce")
	assert.Contains(t, out, "Response: `0`")
}
