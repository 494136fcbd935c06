// Package metrics exposes ledger activity to Prometheus.
package metrics

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	"oasis.ledger/oasis/internal/types"
)

const namespace = "oasis"

// Metrics holds the node collectors.
type Metrics struct {
	txTotal       *prometheus.CounterVec
	blockHeight   prometheus.Gauge
	commitSeconds prometheus.Histogram
	events        prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		txTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions delivered, by type and result code",
		}, []string{"type", "result"}),
		blockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "block_height",
			Help:      "Height of the last committed block",
		}),
		commitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Time spent snapshotting and persisting state on commit",
			Buckets:   prometheus.DefBuckets,
		}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Ledger events published",
		}),
	}
	for _, c := range []prometheus.Collector{m.txTotal, m.blockHeight, m.commitSeconds, m.events} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveTx counts a delivered transaction. A nil receiver is a no-op.
func (m *Metrics) ObserveTx(txType types.TransactionType, result string) {
	if m == nil {
		return
	}
	m.txTotal.WithLabelValues(string(txType), result).Inc()
}

// ObserveCommit records a commit.
func (m *Metrics) ObserveCommit(height int64, took time.Duration) {
	if m == nil {
		return
	}
	m.blockHeight.Set(float64(height))
	m.commitSeconds.Observe(took.Seconds())
}

// ObserveEvent counts a published event.
func (m *Metrics) ObserveEvent() {
	if m == nil {
		return
	}
	m.events.Inc()
}

// Supply is a point-in-time reading of ledger issuance.
type Supply struct {
	Tokens   map[types.Token]*uint256.Int
	Assets   map[types.Collection]map[types.CustodyState]uint64
	Listings int
}

// fetchFn reads the current supply; it must be safe to call concurrently.
type fetchFn func() Supply

type supplyCollector struct {
	fetch fetchFn

	tokenSupply    *prometheus.Desc
	assets         *prometheus.Desc
	activeListings *prometheus.Desc
}

func (c *supplyCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tokenSupply
	ch <- c.assets
	ch <- c.activeListings
}

func (c *supplyCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.fetch()
	for token, amount := range s.Tokens {
		ch <- prometheus.MustNewConstMetric(c.tokenSupply, prometheus.GaugeValue, WholeTokens(amount), string(token))
	}
	for coll, states := range s.Assets {
		for state, n := range states {
			ch <- prometheus.MustNewConstMetric(c.assets, prometheus.GaugeValue, float64(n), string(coll), state.String())
		}
	}
	ch <- prometheus.MustNewConstMetric(c.activeListings, prometheus.GaugeValue, float64(s.Listings))
}

// RegisterSupply registers a collector that reads issuance on every scrape.
func RegisterSupply(reg prometheus.Registerer, fetch func() Supply) error {
	return reg.Register(&supplyCollector{
		fetch: fetch,
		tokenSupply: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "token_supply"),
			"Circulating token supply in whole tokens",
			[]string{"token"}, nil,
		),
		assets: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "assets"),
			"Assets by collection and custody state",
			[]string{"collection", "state"}, nil,
		),
		activeListings: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "active_listings"),
			"Open marketplace listings",
			nil, nil,
		),
	})
}

// WholeTokens converts base units to a float token count for display.
func WholeTokens(amount *uint256.Int) float64 {
	if amount == nil {
		return 0
	}
	whole := new(uint256.Int).Div(amount, types.Unit())
	frac := new(uint256.Int).Mod(amount, types.Unit())
	return whole.Float64() + frac.Float64()/1e18
}
