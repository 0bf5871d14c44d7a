package collector

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	"github.com/cirocosta/bitcoind-exporter/pkg/bitcoind"
)

// CountryMapper defines the signature of a function that given an IP,
// translates it into a country name.
//
//	f(ip) -> CN
//
type CountryMapper func(net.IP) (string, error)

// Collector gathers bitcoind metrics into a Metrics sink whenever Collect is
// called (usually, once per prometheus scrape).
//
type Collector struct {
	// client is the client used to reach bitcoind's rpc server.
	//
	client bitcoind.StatusClient

	// metrics is where the values gathered end up.
	//
	metrics *Metrics

	// countryMapper is a function that knows how to translate IPs to
	// country codes.
	//
	// optional: if not set, every ban is accounted to `unknown`.
	//
	countryMapper CountryMapper

	// pruneStaleBans makes the ban series be rebuilt from scratch on every
	// collection so that peers that got unbanned stop being reported.
	//
	pruneStaleBans bool

	log logr.Logger
}

// Option is a type used by functional arguments to mutate the collector to
// override default behavior.
//
type Option func(c *Collector)

// WithCountryMapper is a functional argument that overrides the default no-op
// country mapper.
//
func WithCountryMapper(v CountryMapper) func(c *Collector) {
	return func(c *Collector) {
		c.countryMapper = v
	}
}

// WithPruneStaleBans makes the collector drop ban series for addresses that
// are not banned anymore.
//
func WithPruneStaleBans() func(c *Collector) {
	return func(c *Collector) {
		c.pruneStaleBans = true
	}
}

func WithLogger(v logr.Logger) func(c *Collector) {
	return func(c *Collector) {
		c.log = v
	}
}

func defaultCountryMapper(_ net.IP) (string, error) {
	return unknownCountry, nil
}

// New instantiates a Collector that queries `client` and writes into
// `metrics`.
//
func New(
	client bitcoind.StatusClient, metrics *Metrics, opts ...Option,
) (*Collector, error) {
	c := &Collector{
		client:        client,
		metrics:       metrics,
		countryMapper: defaultCountryMapper,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.log.GetSink() == nil {
		defaultLogger, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("zap new development: %w", err)
		}

		c.log = zapr.NewLogger(defaultLogger.Named("collector"))
	}

	return c, nil
}

// Stage is a single step of a collection. Stages run in order, and the first
// one to fail aborts the collection.
//
type Stage interface {
	Name() string
	Collect(ctx context.Context) error
}

// Scrape carries the responses fetched by early stages that later ones
// depend on. It lives for a single collection.
//
type Scrape struct {
	Network    *bitcoind.NetworkInfo
	Blockchain *bitcoind.BlockchainInfo
}

// Collect performs a full collection, updating the metrics sink.
//
// Stages run sequentially as later ones depend on what earlier ones fetched
// (e.g., the latest block stats depend on the best block hash). On failure,
// whatever the stages before the failing one wrote stays in the sink.
//
func (c *Collector) Collect(ctx context.Context) error {
	start := time.Now()
	s := &Scrape{}

	for _, stage := range c.stages(s) {
		if err := stage.Collect(ctx); err != nil {
			return fmt.Errorf("%s collect: %w", stage.Name(), err)
		}
	}

	c.log.V(1).Info("collected", "took", time.Since(start))

	return nil
}

func (c *Collector) stages(s *Scrape) []Stage {
	return []Stage{
		NewNetworkInfoFetcher(c.client, s),
		NewBlockchainCollector(c.client, c.metrics, s),
		NewUptimeCollector(c.client, c.metrics, s),
		NewLastBlockCollector(c.client, c.metrics, s),
		NewNetworkCollector(c.metrics, s),
		NewFeesCollector(c.client, c.metrics),
		NewHashRateCollector(c.client, c.metrics),
		NewBanListCollector(c.client, c.metrics, c.log,
			c.countryMapper, c.pruneStaleBans),
		NewChainTipsCollector(c.client, c.metrics),
		NewMempoolCollector(c.client, c.metrics),
		NewNetTotalsCollector(c.client, c.metrics),
	}
}
