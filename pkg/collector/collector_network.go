package collector

import (
	"context"
	"fmt"

	"github.com/cirocosta/bitcoind-exporter/pkg/bitcoind"
)

// NetworkInfoFetcher retrieves the node's network info for the stages that
// come after it. It publishes nothing by itself: see NetworkCollector.
//
type NetworkInfoFetcher struct {
	client bitcoind.StatusClient
	scrape *Scrape
}

var _ Stage = (*NetworkInfoFetcher)(nil)

func NewNetworkInfoFetcher(
	client bitcoind.StatusClient, s *Scrape,
) *NetworkInfoFetcher {
	return &NetworkInfoFetcher{
		client: client,
		scrape: s,
	}
}

func (c *NetworkInfoFetcher) Name() string {
	return "networkinfo"
}

func (c *NetworkInfoFetcher) Collect(ctx context.Context) error {
	res, err := c.client.GetNetworkInfo(ctx)
	if err != nil {
		return err
	}

	c.scrape.Network = res

	return nil
}

// NetworkCollector publishes peer counts and warnings out of the network
// info fetched by NetworkInfoFetcher.
//
type NetworkCollector struct {
	metrics *Metrics
	scrape  *Scrape
}

var _ Stage = (*NetworkCollector)(nil)

func NewNetworkCollector(metrics *Metrics, s *Scrape) *NetworkCollector {
	return &NetworkCollector{
		metrics: metrics,
		scrape:  s,
	}
}

func (c *NetworkCollector) Name() string {
	return "network"
}

func (c *NetworkCollector) Collect(_ context.Context) error {
	if c.scrape.Network == nil {
		return fmt.Errorf("network info must be fetched first")
	}

	c.collectConnections()
	c.collectWarnings()

	return nil
}

func (c *NetworkCollector) collectConnections() {
	info := c.scrape.Network

	c.metrics.Peers.Set(float64(info.Connections))

	// nodes older than 0.21 don't break connections down by direction;
	// in that case we'd rather not report than report zero.
	if info.ConnectionsIn != nil {
		c.metrics.ConnIn.Set(float64(*info.ConnectionsIn))
	}

	if info.ConnectionsOut != nil {
		c.metrics.ConnOut.Set(float64(*info.ConnectionsOut))
	}
}

func (c *NetworkCollector) collectWarnings() {
	warnings := c.scrape.Network.Warnings

	switch warnings.Kind {
	case bitcoind.WarningsList:
		c.metrics.Warnings.Add(float64(len(warnings.List)))
	case bitcoind.WarningsText:
		if warnings.Text != "" {
			c.metrics.Warnings.Inc()
		}
	}
}
