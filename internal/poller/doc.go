// Package poller drives subscription poll cycles on a fixed interval,
// gated by the market-hours window.
package poller
