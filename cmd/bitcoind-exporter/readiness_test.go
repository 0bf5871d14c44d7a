package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"

	"github.com/cirocosta/bitcoind-exporter/pkg/bitcoind"
)

type flakyNode struct {
	failures int
	calls    int
}

func (n *flakyNode) GetNetworkInfo(context.Context) (*bitcoind.NetworkInfo, error) {
	n.calls++

	if n.calls <= n.failures {
		return nil, &bitcoind.CallError{
			Method: "getnetworkinfo",
			Err:    fmt.Errorf("connection refused"),
		}
	}

	return &bitcoind.NetworkInfo{}, nil
}

func fastBackOff(retries uint64) backoff.BackOff {
	return backoff.WithMaxRetries(
		backoff.NewConstantBackOff(time.Millisecond), retries,
	)
}

func TestWaitForNode(t *testing.T) {
	node := &flakyNode{failures: 2}

	err := waitForNode(context.Background(), node, fastBackOff(5), logr.Discard())
	assert.NoError(t, err)
	assert.Equal(t, 3, node.calls)
}

func TestWaitForNode_GivesUp(t *testing.T) {
	node := &flakyNode{failures: 100}

	err := waitForNode(context.Background(), node, fastBackOff(5), logr.Discard())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 6, node.calls)
}

func TestWaitForNode_Canceled(t *testing.T) {
	node := &flakyNode{failures: 100}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := waitForNode(ctx, node, backoff.NewConstantBackOff(time.Hour), logr.Discard())
	assert.Error(t, err)
	assert.LessOrEqual(t, node.calls, 1)
}
