// Package poller implements the quote acquisition loop.
//
// A Cycle runs one round:
//   - Fetches a quote for every configured symbol in order
//   - Retries transient and rate-limited failures with a fixed backoff
//   - Records exactly one outcome per symbol: a quote or a failure record
//   - Optionally loads daily bars once per run
//
// A Poller runs cycles strictly sequentially at a fixed interval, for a
// bounded number of rounds or until its context is cancelled.
package poller
