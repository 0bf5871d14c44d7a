package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"

	"github.com/cirocosta/bitcoind-exporter/pkg/bitcoind"
)

type networkInfoGetter interface {
	GetNetworkInfo(ctx context.Context) (*bitcoind.NetworkInfo, error)
}

func newReadinessBackOff(maxWait time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxWait

	return b
}

// waitForNode blocks until the node answers `getnetworkinfo`, retrying
// according to `b`. Scrapes themselves are never retried: this is only
// meant for not starting to serve before a freshly started node is up.
//
func waitForNode(
	ctx context.Context,
	client networkInfoGetter,
	b backoff.BackOff,
	log logr.Logger,
) error {
	err := backoff.RetryNotify(func() error {
		_, err := client.GetNetworkInfo(ctx)
		return err
	}, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		log.WithValues(
			"retry-in", d.String(),
			"err", err.Error(),
		).Info("node not ready")
	})
	if err != nil {
		return fmt.Errorf("node never became ready: %w", err)
	}

	return nil
}
