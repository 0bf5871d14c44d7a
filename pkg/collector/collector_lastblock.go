package collector

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/cirocosta/bitcoind-exporter/pkg/bitcoind"
)

// LastBlockCollector publishes the stats of the block at the tip of the
// node's best chain.
//
// Failing to look up the best block is treated as any other failure: it
// means the node is in an inconsistent state, which is worth surfacing as a
// failed scrape.
//
type LastBlockCollector struct {
	client  bitcoind.StatusClient
	metrics *Metrics
	scrape  *Scrape

	stats *bitcoind.BlockStats
}

var _ Stage = (*LastBlockCollector)(nil)

func NewLastBlockCollector(
	client bitcoind.StatusClient, metrics *Metrics, s *Scrape,
) *LastBlockCollector {
	return &LastBlockCollector{
		client:  client,
		metrics: metrics,
		scrape:  s,
	}
}

func (c *LastBlockCollector) Name() string {
	return "lastblock"
}

func (c *LastBlockCollector) Collect(ctx context.Context) error {
	err := c.fetchData(ctx)
	if err != nil {
		return fmt.Errorf("fetch last block data: %w", err)
	}

	c.collectSizes()
	c.collectTransactions()
	c.collectAmounts()

	return nil
}

func (c *LastBlockCollector) fetchData(ctx context.Context) error {
	if c.scrape.Blockchain == nil {
		return fmt.Errorf("blockchain info must be fetched first")
	}

	hash := c.scrape.Blockchain.BestBlockHash

	header, err := c.client.GetBlockHeader(ctx, hash)
	if err != nil {
		return fmt.Errorf("block '%s': %w", hash, err)
	}

	stats, err := c.client.GetBlockStats(ctx, header.Height)
	if err != nil {
		return fmt.Errorf("block stats '%d': %w", header.Height, err)
	}

	c.stats = stats

	return nil
}

func (c *LastBlockCollector) collectSizes() {
	c.metrics.LatestBlockSize.Set(float64(c.stats.TotalSize))
	c.metrics.LatestBlockWeight.Set(float64(c.stats.TotalWeight))
	c.metrics.LatestBlockHeight.Set(float64(c.stats.Height))
}

func (c *LastBlockCollector) collectTransactions() {
	c.metrics.LatestBlockTxs.Set(float64(c.stats.Txs))
	c.metrics.LatestBlockInputs.Set(float64(c.stats.Ins))
	c.metrics.LatestBlockOutputs.Set(float64(c.stats.Outs))
}

func (c *LastBlockCollector) collectAmounts() {
	c.metrics.LatestBlockValue.Set(btcutil.Amount(c.stats.TotalOut).ToBTC())
	c.metrics.LatestBlockFee.Set(btcutil.Amount(c.stats.TotalFee).ToBTC())
}
