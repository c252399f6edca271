// Package market tracks which board (TWSE listed or TPEx OTC) each symbol
// trades on.
//
// The real-time endpoint needs the board in its channel name. Boards come
// from three places, in priority order:
//   - the symbol itself (tse:2330, 3008.TWO)
//   - configured overrides
//   - boards learned from earlier responses
//
// Unresolved symbols are queried on both boards in one request and the
// board reported back is learned.
package market
