// Package collector provides the core functionality of this exporter.
//
// A Collector queries a bitcoind node through a sequence of stages and
// writes what it learns into a Metrics sink, which an exporter then renders
// whenever a scrape comes in. Collections happen per scrape, allowing us to
// not have to rely on a particular interval defined in this exporter
// (instead, rely on prometheus' scrape interval).
//
package collector
