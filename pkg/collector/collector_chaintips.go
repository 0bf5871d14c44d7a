package collector

import (
	"context"

	"github.com/cirocosta/bitcoind-exporter/pkg/bitcoind"
)

type ChainTipsCollector struct {
	client  bitcoind.StatusClient
	metrics *Metrics

	tips []bitcoind.ChainTip
}

var _ Stage = (*ChainTipsCollector)(nil)

func NewChainTipsCollector(
	client bitcoind.StatusClient, metrics *Metrics,
) *ChainTipsCollector {
	return &ChainTipsCollector{
		client:  client,
		metrics: metrics,
	}
}

func (c *ChainTipsCollector) Name() string {
	return "chaintips"
}

func (c *ChainTipsCollector) Collect(ctx context.Context) error {
	res, err := c.client.GetChainTips(ctx)
	if err != nil {
		return err
	}

	c.tips = res

	c.metrics.NumChainTips.Set(float64(len(c.tips)))
	c.collectBranchLengths()

	return nil
}

func (c *ChainTipsCollector) collectBranchLengths() {
	summary := NewSummary()
	for _, tip := range c.tips {
		summary.Insert(float64(tip.BranchLen))
	}

	c.metrics.ChainTipsBranchLen.Observe(summary)
}
