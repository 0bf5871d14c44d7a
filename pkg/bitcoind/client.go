package bitcoind

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/hashicorp/go-cleanhttp"
)

// StatusClient is the set of read-only remote procedures the exporter relies
// on.
//
type StatusClient interface {
	GetNetworkInfo(ctx context.Context) (*NetworkInfo, error)
	GetBlockchainInfo(ctx context.Context) (*BlockchainInfo, error)
	Uptime(ctx context.Context) (uint64, error)
	GetBlockHeader(ctx context.Context, hash string) (*BlockHeader, error)
	GetBlockStats(ctx context.Context, height int64) (*BlockStats, error)
	EstimateSmartFee(ctx context.Context, confTarget int64) (*SmartFee, error)
	GetNetworkHashPS(ctx context.Context, window int64, height *int64) (float64, error)
	ListBanned(ctx context.Context) ([]BanEntry, error)
	GetChainTips(ctx context.Context) ([]ChainTip, error)
	GetMempoolInfo(ctx context.Context) (*MempoolInfo, error)
	GetNetTotals(ctx context.Context) (*NetTotals, error)
}

// Client talks to bitcoind via JSON-RPC 1.0 over HTTP POST. Every method
// is a single attempt bound by its context: nothing is retried, and
// canceling the context aborts the request in flight.
//
// A Client is safe for concurrent use; concurrent calls go out over
// separate connections.
//
type Client struct {
	url        string
	user       string
	password   string
	cookieFile string

	httpClient *http.Client
	lastID     atomic.Uint64
}

var _ StatusClient = (*Client)(nil)

// Config carries what's needed to reach and authenticate against a node.
//
type Config struct {
	// Host is the `host:port` of the node's RPC server.
	//
	Host string

	// User and Password are used for basic authentication unless
	// CookieFile is set.
	//
	User     string
	Password string

	// CookieFile is the path to bitcoind's `.cookie` file. It is read on
	// every call as bitcoind rewrites it whenever it restarts.
	//
	CookieFile string

	// TLS enables https towards the node.
	//
	TLS bool
}

// ClientOption is a type used by functional arguments to override the
// client's defaults.
//
type ClientOption func(c *Client)

// WithHTTPClient overrides the default pooled http client.
//
func WithHTTPClient(v *http.Client) func(c *Client) {
	return func(c *Client) {
		c.httpClient = v
	}
}

// NewClient instantiates a Client for the node described by `cfg`.
//
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host must be set")
	}

	scheme := "http"
	if cfg.TLS {
		scheme = "https"
	}

	c := &Client{
		url:        scheme + "://" + cfg.Host,
		user:       cfg.User,
		password:   cfg.Password,
		cookieFile: cfg.CookieFile,
		httpClient: cleanhttp.DefaultPooledClient(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Close releases the idle connections kept towards the node.
//
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) GetNetworkInfo(ctx context.Context) (*NetworkInfo, error) {
	resp := &NetworkInfo{}
	if err := c.call(ctx, "getnetworkinfo", resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) GetBlockchainInfo(ctx context.Context) (*BlockchainInfo, error) {
	resp := &BlockchainInfo{}
	if err := c.call(ctx, "getblockchaininfo", resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) Uptime(ctx context.Context) (uint64, error) {
	var resp uint64
	if err := c.call(ctx, "uptime", &resp); err != nil {
		return 0, err
	}

	return resp, nil
}

func (c *Client) GetBlockHeader(ctx context.Context, hash string) (*BlockHeader, error) {
	resp := &BlockHeader{}
	if err := c.call(ctx, "getblockheader", resp, hash, true); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) GetBlockStats(ctx context.Context, height int64) (*BlockStats, error) {
	resp := &BlockStats{}
	if err := c.call(ctx, "getblockstats", resp, height); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) EstimateSmartFee(ctx context.Context, confTarget int64) (*SmartFee, error) {
	resp := &SmartFee{}
	if err := c.call(ctx, "estimatesmartfee", resp, confTarget); err != nil {
		return nil, err
	}

	return resp, nil
}

// GetNetworkHashPS estimates the network hashes per second based on the last
// `window` blocks. A nil height means "at the tip".
//
func (c *Client) GetNetworkHashPS(
	ctx context.Context, window int64, height *int64,
) (float64, error) {
	params := []interface{}{window}
	if height != nil {
		params = append(params, *height)
	}

	var resp float64
	if err := c.call(ctx, "getnetworkhashps", &resp, params...); err != nil {
		return 0, err
	}

	return resp, nil
}

func (c *Client) ListBanned(ctx context.Context) ([]BanEntry, error) {
	var resp []BanEntry
	if err := c.call(ctx, "listbanned", &resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) GetChainTips(ctx context.Context) ([]ChainTip, error) {
	var resp []ChainTip
	if err := c.call(ctx, "getchaintips", &resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) GetMempoolInfo(ctx context.Context) (*MempoolInfo, error) {
	resp := &MempoolInfo{}
	if err := c.call(ctx, "getmempoolinfo", resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) GetNetTotals(ctx context.Context) (*NetTotals, error) {
	resp := &NetTotals{}
	if err := c.call(ctx, "getnettotals", resp); err != nil {
		return nil, err
	}

	return resp, nil
}

// call performs a single request, decoding its result into `v`. Any
// failure is reported as a *CallError.
//
func (c *Client) call(
	ctx context.Context, method string, v interface{}, params ...interface{},
) error {
	if err := c.do(ctx, method, v, params); err != nil {
		return &CallError{Method: method, Err: err}
	}

	return nil
}

func (c *Client) do(
	ctx context.Context, method string, v interface{}, params []interface{},
) error {
	rpcReq, err := btcjson.NewRequest(
		btcjson.RpcVersion1, c.lastID.Add(1), method, params,
	)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	body, err := codec.Marshal(rpcReq)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.url, bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("new http request: %w", err)
	}

	user, password, err := c.credentials()
	if err != nil {
		return fmt.Errorf("credentials: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(user, password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// bitcoind answers rpc errors with a non-2xx status and the error in
	// the envelope, while auth failures come with an empty body.
	rpcResp := &btcjson.Response{}
	if err := codec.Unmarshal(respBody, rpcResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %s: %s", resp.Status,
				strings.TrimSpace(string(respBody)))
		}

		return fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %s", resp.Status)
	}

	if err := codec.Unmarshal(rpcResp.Result, v); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}

	return nil
}

// credentials returns the user and password to authenticate with, taken
// from the cookie file when one is configured.
//
func (c *Client) credentials() (string, string, error) {
	if c.cookieFile == "" {
		return c.user, c.password, nil
	}

	content, err := os.ReadFile(c.cookieFile)
	if err != nil {
		return "", "", fmt.Errorf("read cookie '%s': %w", c.cookieFile, err)
	}

	user, password, found := strings.Cut(
		strings.TrimSpace(string(content)), ":",
	)
	if !found {
		return "", "", fmt.Errorf("malformed cookie '%s'", c.cookieFile)
	}

	return user, password, nil
}
