package collector

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// BanReason is the value of the `reason` label of ban series. bitcoind
// doesn't report why a peer got banned, and the only way of banning through
// the RPC interface is `setban`.
//
const BanReason = "manually added"

// FeeHorizons are the confirmation targets (in blocks) for which fee rates
// are estimated on every scrape.
//
var FeeHorizons = []int64{2, 3, 5, 20}

// Gauge is a gauge without labels that is only exposed after it has been set
// for the first time, so that values we never learnt about don't show up as
// zeroes.
//
type Gauge struct {
	vec *prometheus.GaugeVec
}

var _ prometheus.Collector = (*Gauge)(nil)

func newGauge(name, help string) *Gauge {
	return &Gauge{
		vec: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: name,
			Help: help,
		}, nil),
	}
}

// Set overwrites the current value.
//
func (g *Gauge) Set(v float64) {
	g.vec.WithLabelValues().Set(v)
}

func (g *Gauge) Describe(ch chan<- *prometheus.Desc) {
	g.vec.Describe(ch)
}

func (g *Gauge) Collect(ch chan<- prometheus.Metric) {
	g.vec.Collect(ch)
}

// SummarySnapshot exposes the last Summary it has been given as a constant
// prometheus summary.
//
type SummarySnapshot struct {
	desc *prometheus.Desc

	mu        sync.Mutex
	set       bool
	count     uint64
	sum       float64
	quantiles map[float64]float64
}

var _ prometheus.Collector = (*SummarySnapshot)(nil)

func newSummarySnapshot(name, help string) *SummarySnapshot {
	return &SummarySnapshot{
		desc: prometheus.NewDesc(name, help, nil, nil),
	}
}

// Observe replaces the exposed values with those of `s`.
//
func (s *SummarySnapshot) Observe(summary *Summary) {
	quantiles := summary.Quantiles()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.set = true
	s.count = summary.Count()
	s.sum = summary.Sum()
	s.quantiles = quantiles
}

func (s *SummarySnapshot) Describe(ch chan<- *prometheus.Desc) {
	ch <- s.desc
}

func (s *SummarySnapshot) Collect(ch chan<- prometheus.Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.set {
		return
	}

	quantiles := make(map[float64]float64, len(s.quantiles))
	for phi, v := range s.quantiles {
		quantiles[phi] = v
	}

	ch <- prometheus.MustNewConstSummary(s.desc, s.count, s.sum, quantiles)
}

// Metrics is the sink that the Collector writes into. All of its series are
// registered against the registerer given to NewMetrics, keeping it isolated
// from any other registry in the process.
//
type Metrics struct {
	Blocks               *Gauge
	Difficulty           *Gauge
	SizeOnDisk           *Gauge
	VerificationProgress *Gauge

	// Uptime is labeled by `version`, `protocol` and `chain`.
	//
	Uptime *prometheus.GaugeVec

	LatestBlockSize    *Gauge
	LatestBlockTxs     *Gauge
	LatestBlockHeight  *Gauge
	LatestBlockWeight  *Gauge
	LatestBlockInputs  *Gauge
	LatestBlockOutputs *Gauge
	LatestBlockValue   *Gauge
	LatestBlockFee     *Gauge

	Peers   *Gauge
	ConnIn  *Gauge
	ConnOut *Gauge

	// Warnings accumulates the warnings seen since the process started.
	//
	Warnings prometheus.Counter

	// SmartFee holds one gauge per entry of FeeHorizons.
	//
	SmartFee map[int64]*Gauge

	HashPS  *Gauge
	HashPS1 *Gauge

	// BanCreated and BannedUntil are labeled by `address` and `reason`.
	//
	BanCreated  *prometheus.GaugeVec
	BannedUntil *prometheus.GaugeVec

	// BannedPeers is labeled by `country`.
	//
	BannedPeers *prometheus.GaugeVec

	NumChainTips       *Gauge
	ChainTipsBranchLen *SummarySnapshot

	MempoolBytes       *Gauge
	MempoolSize        *Gauge
	MempoolUsage       *Gauge
	MempoolUnbroadcast *Gauge

	TotalBytesRecv *Gauge
	TotalBytesSent *Gauge
}

// NewMetrics instantiates every series the Collector writes to and
// registers them with `reg`.
//
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Blocks: newGauge("bitcoin_blocks",
			"block height of the node's best chain"),
		Difficulty: newGauge("bitcoin_difficulty",
			"current proof-of-work difficulty"),
		SizeOnDisk: newGauge("bitcoin_size_on_disk",
			"estimated size of the block and undo files on disk"),
		VerificationProgress: newGauge("bitcoin_verification_progress",
			"estimate of the chain verification progress [0..1]"),

		Uptime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bitcoin_uptime",
			Help: "number of seconds the node has been running",
		}, []string{"version", "protocol", "chain"}),

		LatestBlockSize: newGauge("bitcoin_latest_block_size",
			"size of the latest block in bytes"),
		LatestBlockTxs: newGauge("bitcoin_latest_block_txs",
			"number of transactions in the latest block"),
		LatestBlockHeight: newGauge("bitcoin_latest_block_height",
			"height of the latest block"),
		LatestBlockWeight: newGauge("bitcoin_latest_block_weight",
			"weight of the latest block"),
		LatestBlockInputs: newGauge("bitcoin_latest_block_inputs",
			"number of inputs in the latest block"),
		LatestBlockOutputs: newGauge("bitcoin_latest_block_outputs",
			"number of outputs in the latest block"),
		LatestBlockValue: newGauge("bitcoin_latest_block_value",
			"total value of the outputs in the latest block in BTC"),
		LatestBlockFee: newGauge("bitcoin_latest_block_fee",
			"total fees paid in the latest block in BTC"),

		Peers: newGauge("bitcoin_peers",
			"number of peers connected to the node"),
		ConnIn: newGauge("bitcoin_conn_in",
			"number of inbound connections"),
		ConnOut: newGauge("bitcoin_conn_out",
			"number of outbound connections"),

		Warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitcoin_warnings",
			Help: "number of network or blockchain warnings observed",
		}),

		SmartFee: make(map[int64]*Gauge, len(FeeHorizons)),

		HashPS: newGauge("bitcoin_hashps",
			"estimated network hash rate per second over the "+
				"last 120 blocks"),
		HashPS1: newGauge("bitcoin_hashps_1",
			"estimated network hash rate per second for the "+
				"last block"),

		BanCreated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bitcoin_ban_created",
			Help: "time the ban was created",
		}, []string{"address", "reason"}),
		BannedUntil: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bitcoin_banned_until",
			Help: "time the ban expires",
		}, []string{"address", "reason"}),
		BannedPeers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bitcoin_banned_peers",
			Help: "number of banned addresses per country",
		}, []string{"country"}),

		NumChainTips: newGauge("bitcoin_num_chaintips",
			"number of known blockchain branches"),
		ChainTipsBranchLen: newSummarySnapshot(
			"bitcoin_chaintips_branchlen",
			"distribution of the length of the branches "+
				"connecting the tips to the main chain"),

		MempoolBytes: newGauge("bitcoin_mempool_bytes",
			"sum of all virtual transaction sizes in the mempool"),
		MempoolSize: newGauge("bitcoin_mempool_size",
			"number of transactions in the mempool"),
		MempoolUsage: newGauge("bitcoin_mempool_usage",
			"total memory usage of the mempool"),
		MempoolUnbroadcast: newGauge("bitcoin_mempool_unbroadcast",
			"number of transactions in the mempool that haven't "+
				"been broadcast yet"),

		TotalBytesRecv: newGauge("bitcoin_total_bytes_recv",
			"total bytes received by the node"),
		TotalBytesSent: newGauge("bitcoin_total_bytes_sent",
			"total bytes sent by the node"),
	}

	for _, target := range FeeHorizons {
		m.SmartFee[target] = newGauge(
			"bitcoin_est_smart_fee_"+strconv.FormatInt(target, 10),
			"estimated smart fee in satoshis per kvB for a "+
				"confirmation within "+strconv.FormatInt(target, 10)+
				" blocks",
		)
	}

	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	collectors := []prometheus.Collector{
		m.Blocks, m.Difficulty, m.SizeOnDisk, m.VerificationProgress,
		m.Uptime,
		m.LatestBlockSize, m.LatestBlockTxs, m.LatestBlockHeight,
		m.LatestBlockWeight, m.LatestBlockInputs, m.LatestBlockOutputs,
		m.LatestBlockValue, m.LatestBlockFee,
		m.Peers, m.ConnIn, m.ConnOut,
		m.Warnings,
		m.HashPS, m.HashPS1,
		m.BanCreated, m.BannedUntil, m.BannedPeers,
		m.NumChainTips, m.ChainTipsBranchLen,
		m.MempoolBytes, m.MempoolSize, m.MempoolUsage,
		m.MempoolUnbroadcast,
		m.TotalBytesRecv, m.TotalBytesSent,
	}

	for _, target := range FeeHorizons {
		collectors = append(collectors, m.SmartFee[target])
	}

	return collectors
}
