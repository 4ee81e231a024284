// Package metrics exposes router telemetry as Prometheus collectors on a
// private registry.
package metrics

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

var weiPerEther = new(big.Float).SetInt(big.NewInt(1e18))

// Collector records trades, rewards and reserves.
type Collector struct {
	registry *prometheus.Registry

	trades        *prometheus.CounterVec
	failures      *prometheus.CounterVec
	volume        *prometheus.CounterVec
	rewardsMinted *prometheus.CounterVec
	reserve       *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "router"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.trades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "total",
			Help:      "Committed trades",
		},
		[]string{"side", "token"},
	)
	c.failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "failures_total",
			Help:      "Rejected or aborted trades",
		},
		[]string{"side", "token"},
	)
	c.volume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "volume_ether",
			Help:      "Native currency moved by committed trades, in ether",
		},
		[]string{"side", "token"},
	)
	c.rewardsMinted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rewards",
			Name:      "minted",
			Help:      "Reward tokens minted, in whole units",
		},
		[]string{"token"},
	)
	c.reserve = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reserve",
			Name:      "ether",
			Help:      "Tracked WETH reserve per safelisted token, in ether",
		},
		[]string{"token"},
	)
	c.latency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "duration_seconds",
			Help:      "Time taken to settle a trade",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"side"},
	)

	c.registry.MustRegister(c.trades, c.failures, c.volume, c.rewardsMinted, c.reserve, c.latency)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) TradeCommitted(side string, token common.Address, ether *uint256.Int, seconds float64) {
	c.trades.WithLabelValues(side, token.Hex()).Inc()
	c.volume.WithLabelValues(side, token.Hex()).Add(toEther(ether))
	c.latency.WithLabelValues(side).Observe(seconds)
}

func (c *Collector) TradeFailed(side string, token common.Address) {
	c.failures.WithLabelValues(side, token.Hex()).Inc()
}

func (c *Collector) RewardMinted(token common.Address, amount *uint256.Int) {
	c.rewardsMinted.WithLabelValues(token.Hex()).Add(toEther(amount))
}

func (c *Collector) SetReserve(token common.Address, reserve *uint256.Int) {
	c.reserve.WithLabelValues(token.Hex()).Set(toEther(reserve))
}

func toEther(v *uint256.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v.ToBig()), weiPerEther).Float64()
	return f
}
