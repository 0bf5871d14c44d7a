package collector

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cirocosta/bitcoind-exporter/pkg/bitcoind"
)

const (
	// hashRateWindow is the number of blocks bitcoind averages over by
	// default.
	hashRateWindow = 120

	hashRateWindowLastBlock = 1
)

type HashRateCollector struct {
	client  bitcoind.StatusClient
	metrics *Metrics
}

var _ Stage = (*HashRateCollector)(nil)

func NewHashRateCollector(
	client bitcoind.StatusClient, metrics *Metrics,
) *HashRateCollector {
	return &HashRateCollector{
		client:  client,
		metrics: metrics,
	}
}

func (c *HashRateCollector) Name() string {
	return "hashrate"
}

func (c *HashRateCollector) Collect(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for window, gauge := range map[int64]*Gauge{
		hashRateWindow:          c.metrics.HashPS,
		hashRateWindowLastBlock: c.metrics.HashPS1,
	} {
		window, gauge := window, gauge

		g.Go(func() error {
			hashps, err := c.client.GetNetworkHashPS(ctx, window, nil)
			if err != nil {
				return fmt.Errorf("window %d: %w", window, err)
			}

			gauge.Set(hashps)
			return nil
		})
	}

	return g.Wait()
}
