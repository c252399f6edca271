// Package history fetches historical daily bars.
//
// Providers:
//   - exchange: TWSE STOCK_DAY for listed securities and TPEx st43 for OTC
//     securities, one request per calendar month
//   - yahoo: Yahoo Finance chart API via piquette/finance-go (.TW / .TWO)
//
// Every provider returns bars sorted ascending by date with no duplicate
// dates; days without trading are omitted.
package history
