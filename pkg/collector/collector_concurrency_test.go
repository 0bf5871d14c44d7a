package collector_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cirocosta/bitcoind-exporter/pkg/bitcoind"
	"github.com/cirocosta/bitcoind-exporter/pkg/collector"
)

// slowNode answers every request after `delay`, keeping track of how many
// requests it was serving at once.
//
type slowNode struct {
	delay   time.Duration
	results map[string]string

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
}

func (n *slowNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string          `json:"method"`
		ID     json.RawMessage `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.inFlight++
	if n.inFlight > n.maxInFlight {
		n.maxInFlight = n.inFlight
	}
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		n.inFlight--
		n.mu.Unlock()
	}()

	select {
	case <-time.After(n.delay):
	case <-r.Context().Done():
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     req.ID,
		"result": json.RawMessage(n.results[req.Method]),
		"error":  nil,
	})
}

func (n *slowNode) peak() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.maxInFlight
}

func newSlowNodeClient(t *testing.T, node *slowNode) *bitcoind.Client {
	t.Helper()

	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	client, err := bitcoind.NewClient(bitcoind.Config{
		Host: strings.TrimPrefix(srv.URL, "http://"),
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

func TestFeesCollector_HorizonsOverlap(t *testing.T) {
	node := &slowNode{
		delay: 200 * time.Millisecond,
		results: map[string]string{
			"estimatesmartfee": `{"feerate": 0.0001, "blocks": 2}`,
		},
	}
	client := newSlowNodeClient(t, node)

	metrics, err := collector.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	err = collector.NewFeesCollector(client, metrics).Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(collector.FeeHorizons), node.peak())
	for _, target := range collector.FeeHorizons {
		assert.Equal(t, float64(10000), testutil.ToFloat64(metrics.SmartFee[target]))
	}
}

func TestHashRateCollector_WindowsOverlap(t *testing.T) {
	node := &slowNode{
		delay: 200 * time.Millisecond,
		results: map[string]string{
			"getnetworkhashps": `6.5e20`,
		},
	}
	client := newSlowNodeClient(t, node)

	metrics, err := collector.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	err = collector.NewHashRateCollector(client, metrics).Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, node.peak())
	assert.Equal(t, 6.5e20, testutil.ToFloat64(metrics.HashPS))
	assert.Equal(t, 6.5e20, testutil.ToFloat64(metrics.HashPS1))
}
