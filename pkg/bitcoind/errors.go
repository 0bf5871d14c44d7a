package bitcoind

import "fmt"

// CallError is returned by every StatusClient method whenever the remote
// procedure could not be completed, be it due to the transport, an error
// reported by the node, or a result we were not able to decode.
//
type CallError struct {
	// Method is the name of the remote procedure (e.g., `getmempoolinfo`).
	//
	Method string

	// Err is the underlying cause.
	//
	Err error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %v", e.Method, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}
