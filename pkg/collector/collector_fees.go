package collector

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"golang.org/x/sync/errgroup"

	"github.com/cirocosta/bitcoind-exporter/pkg/bitcoind"
)

// FeesCollector publishes smart fee estimates for each of FeeHorizons.
//
// Horizons are estimated concurrently, but any of them failing fails the
// whole stage. A horizon for which the node has no estimate keeps whatever
// value it had before.
//
type FeesCollector struct {
	client  bitcoind.StatusClient
	metrics *Metrics
}

var _ Stage = (*FeesCollector)(nil)

func NewFeesCollector(
	client bitcoind.StatusClient, metrics *Metrics,
) *FeesCollector {
	return &FeesCollector{
		client:  client,
		metrics: metrics,
	}
}

func (c *FeesCollector) Name() string {
	return "fees"
}

func (c *FeesCollector) Collect(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, target := range FeeHorizons {
		target := target

		g.Go(func() error {
			if err := c.collectHorizon(ctx, target); err != nil {
				return fmt.Errorf("horizon %d: %w", target, err)
			}

			return nil
		})
	}

	return g.Wait()
}

func (c *FeesCollector) collectHorizon(ctx context.Context, target int64) error {
	res, err := c.client.EstimateSmartFee(ctx, target)
	if err != nil {
		return err
	}

	if res.FeeRate == nil {
		return nil
	}

	// feerate comes in BTC/kvB.
	satsPerKvB, err := btcutil.NewAmount(*res.FeeRate)
	if err != nil {
		return &bitcoind.CallError{
			Method: "estimatesmartfee",
			Err:    fmt.Errorf("fee rate %v: %w", *res.FeeRate, err),
		}
	}

	c.metrics.SmartFee[target].Set(float64(satsPerKvB))

	return nil
}
