package collector

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cirocosta/bitcoind-exporter/pkg/bitcoind"
)

type BlockchainCollector struct {
	client  bitcoind.StatusClient
	metrics *Metrics
	scrape  *Scrape
}

var _ Stage = (*BlockchainCollector)(nil)

func NewBlockchainCollector(
	client bitcoind.StatusClient, metrics *Metrics, s *Scrape,
) *BlockchainCollector {
	return &BlockchainCollector{
		client:  client,
		metrics: metrics,
		scrape:  s,
	}
}

func (c *BlockchainCollector) Name() string {
	return "blockchain"
}

func (c *BlockchainCollector) Collect(ctx context.Context) error {
	res, err := c.client.GetBlockchainInfo(ctx)
	if err != nil {
		return err
	}

	c.scrape.Blockchain = res

	c.metrics.Blocks.Set(float64(res.Blocks))
	c.metrics.Difficulty.Set(res.Difficulty)
	c.metrics.SizeOnDisk.Set(float64(res.SizeOnDisk))
	c.metrics.VerificationProgress.Set(res.VerificationProgress)

	return nil
}

// UptimeCollector publishes the node's uptime labeled by the node's version,
// protocol version and chain. Those only change on upgrades or when the node
// is pointed at another chain, keeping cardinality low.
//
type UptimeCollector struct {
	client  bitcoind.StatusClient
	metrics *Metrics
	scrape  *Scrape
}

var _ Stage = (*UptimeCollector)(nil)

func NewUptimeCollector(
	client bitcoind.StatusClient, metrics *Metrics, s *Scrape,
) *UptimeCollector {
	return &UptimeCollector{
		client:  client,
		metrics: metrics,
		scrape:  s,
	}
}

func (c *UptimeCollector) Name() string {
	return "uptime"
}

func (c *UptimeCollector) Collect(ctx context.Context) error {
	if c.scrape.Network == nil || c.scrape.Blockchain == nil {
		return fmt.Errorf("network and blockchain info must be " +
			"fetched first")
	}

	uptime, err := c.client.Uptime(ctx)
	if err != nil {
		return err
	}

	c.metrics.Uptime.WithLabelValues(
		strconv.FormatInt(c.scrape.Network.Version, 10),
		strconv.FormatInt(c.scrape.Network.ProtocolVersion, 10),
		c.scrape.Blockchain.Chain,
	).Set(float64(uptime))

	return nil
}
