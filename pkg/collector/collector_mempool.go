package collector

import (
	"context"

	"github.com/cirocosta/bitcoind-exporter/pkg/bitcoind"
)

type MempoolCollector struct {
	client  bitcoind.StatusClient
	metrics *Metrics
}

var _ Stage = (*MempoolCollector)(nil)

func NewMempoolCollector(
	client bitcoind.StatusClient, metrics *Metrics,
) *MempoolCollector {
	return &MempoolCollector{
		client:  client,
		metrics: metrics,
	}
}

func (c *MempoolCollector) Name() string {
	return "mempool"
}

func (c *MempoolCollector) Collect(ctx context.Context) error {
	res, err := c.client.GetMempoolInfo(ctx)
	if err != nil {
		return err
	}

	c.metrics.MempoolBytes.Set(float64(res.Bytes))
	c.metrics.MempoolSize.Set(float64(res.Size))
	c.metrics.MempoolUsage.Set(float64(res.Usage))

	// nodes that omit the field don't track unbroadcast transactions at
	// all, so there are none.
	unbroadcast := int64(0)
	if res.UnbroadcastCount != nil {
		unbroadcast = *res.UnbroadcastCount
	}

	c.metrics.MempoolUnbroadcast.Set(float64(unbroadcast))

	return nil
}
