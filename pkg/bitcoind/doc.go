// Package bitcoind is a thin client for the subset of bitcoind's JSON-RPC
// control-plane API that the exporter needs.
//
// Every call maps to exactly one remote procedure, is never retried, and
// reports failures as a *CallError carrying the name of the procedure that
// failed.
//
package bitcoind
