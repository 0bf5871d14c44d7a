package collector

import (
	"context"

	"github.com/cirocosta/bitcoind-exporter/pkg/bitcoind"
)

type NetTotalsCollector struct {
	client  bitcoind.StatusClient
	metrics *Metrics
}

var _ Stage = (*NetTotalsCollector)(nil)

func NewNetTotalsCollector(
	client bitcoind.StatusClient, metrics *Metrics,
) *NetTotalsCollector {
	return &NetTotalsCollector{
		client:  client,
		metrics: metrics,
	}
}

func (c *NetTotalsCollector) Name() string {
	return "net"
}

func (c *NetTotalsCollector) Collect(ctx context.Context) error {
	res, err := c.client.GetNetTotals(ctx)
	if err != nil {
		return err
	}

	c.metrics.TotalBytesRecv.Set(float64(res.TotalBytesRecv))
	c.metrics.TotalBytesSent.Set(float64(res.TotalBytesSent))

	return nil
}
