// Package api provides the TWSE MIS (market information system) client used
// for real-time quotes.
//
// Endpoint:
//   - https://mis.twse.com.tw/stock/api/getStockInfo.jsp?ex_ch=tse_2330.tw&json=1&delay=0
//
// The client makes exactly one request per FetchQuote call and never retries;
// retry policy belongs to the caller. Errors are classified with the
// ErrTransient, ErrRateLimited and ErrPermanent sentinels.
package api
