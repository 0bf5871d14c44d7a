package bitcoind

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// NetworkInfo is the result of `getnetworkinfo`.
//
type NetworkInfo struct {
	Version         int64  `json:"version"`
	SubVersion      string `json:"subversion"`
	ProtocolVersion int64  `json:"protocolversion"`
	Connections     int64  `json:"connections"`

	// ConnectionsIn and ConnectionsOut are only reported by nodes >= 0.21;
	// nil means "unknown", not zero.
	//
	ConnectionsIn  *int64 `json:"connections_in,omitempty"`
	ConnectionsOut *int64 `json:"connections_out,omitempty"`

	NetworkActive bool     `json:"networkactive"`
	RelayFee      float64  `json:"relayfee"`
	Warnings      Warnings `json:"warnings"`
}

// WarningsKind tells which of the two shapes `warnings` came in.
//
type WarningsKind int

const (
	// WarningsText is the legacy single-string form.
	WarningsText WarningsKind = iota

	// WarningsList is the list-of-strings form (bitcoind >= 28).
	WarningsList
)

// Warnings holds the `warnings` field of `getnetworkinfo`, which older nodes
// report as a single (possibly empty) string and newer ones as a list of
// strings.
//
type Warnings struct {
	Kind WarningsKind
	Text string
	List []string
}

// Count is the number of warnings carried: 0 for an empty string, 1 for a
// non-empty one, and the number of entries for a list.
//
func (w Warnings) Count() int {
	switch w.Kind {
	case WarningsList:
		return len(w.List)
	default:
		if w.Text == "" {
			return 0
		}

		return 1
	}
}

func (w *Warnings) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)

	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*w = Warnings{Kind: WarningsText}
		return nil
	case b[0] == '[':
		var list []string
		if err := codec.Unmarshal(b, &list); err != nil {
			return fmt.Errorf("unmarshal warnings list: %w", err)
		}

		*w = Warnings{Kind: WarningsList, List: list}
		return nil
	default:
		var text string
		if err := codec.Unmarshal(b, &text); err != nil {
			return fmt.Errorf("unmarshal warnings text: %w", err)
		}

		*w = Warnings{Kind: WarningsText, Text: text}
		return nil
	}
}

func (w Warnings) MarshalJSON() ([]byte, error) {
	if w.Kind == WarningsList {
		if w.List == nil {
			return []byte("[]"), nil
		}

		return codec.Marshal(w.List)
	}

	return codec.Marshal(w.Text)
}

// BlockchainInfo is the result of `getblockchaininfo`.
//
type BlockchainInfo struct {
	// Chain is the network name as bitcoind reports it: main, test,
	// testnet4, signet or regtest.
	//
	Chain                string  `json:"chain"`
	Blocks               int64   `json:"blocks"`
	Headers              int64   `json:"headers"`
	BestBlockHash        string  `json:"bestblockhash"`
	Difficulty           float64 `json:"difficulty"`
	VerificationProgress float64 `json:"verificationprogress"`
	InitialBlockDownload bool    `json:"initialblockdownload"`
	SizeOnDisk           uint64  `json:"size_on_disk"`
	Pruned               bool    `json:"pruned"`
}

// BlockHeader is the verbose result of `getblockheader`.
//
type BlockHeader struct {
	Hash          string `json:"hash"`
	Height        int64  `json:"height"`
	Confirmations int64  `json:"confirmations"`
	Time          int64  `json:"time"`
}

// BlockStats is the result of `getblockstats`. Amounts are in satoshis.
//
type BlockStats struct {
	Height      int64 `json:"height"`
	TotalSize   int64 `json:"total_size"`
	TotalWeight int64 `json:"total_weight"`
	Txs         int64 `json:"txs"`
	Ins         int64 `json:"ins"`
	Outs        int64 `json:"outs"`
	TotalOut    int64 `json:"total_out"`
	TotalFee    int64 `json:"totalfee"`
}

// SmartFee is the result of `estimatesmartfee`.
//
type SmartFee struct {
	// FeeRate is the estimate in BTC/kvB. nil when the node does not have
	// enough data to produce an estimate, which is not an error.
	//
	FeeRate *float64 `json:"feerate,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	Blocks  int64    `json:"blocks"`
}

// BanEntry is an element of the `listbanned` result.
//
type BanEntry struct {
	Address     string `json:"address"`
	BanCreated  int64  `json:"ban_created"`
	BannedUntil int64  `json:"banned_until"`
}

// ChainTip is an element of the `getchaintips` result.
//
type ChainTip struct {
	Height    int64  `json:"height"`
	Hash      string `json:"hash"`
	BranchLen int64  `json:"branchlen"`
	Status    string `json:"status"`
}

// MempoolInfo is the result of `getmempoolinfo`.
//
type MempoolInfo struct {
	Loaded     bool    `json:"loaded"`
	Size       int64   `json:"size"`
	Bytes      int64   `json:"bytes"`
	Usage      int64   `json:"usage"`
	MaxMempool int64   `json:"maxmempool"`
	MinFee     float64 `json:"mempoolminfee"`

	// UnbroadcastCount is omitted by nodes older than 0.21, which never
	// tracked unbroadcast transactions.
	//
	UnbroadcastCount *int64 `json:"unbroadcastcount,omitempty"`
}

// NetTotals is the result of `getnettotals`.
//
type NetTotals struct {
	TotalBytesRecv uint64 `json:"totalbytesrecv"`
	TotalBytesSent uint64 `json:"totalbytessent"`
	TimeMillis     int64  `json:"timemillis"`
}
