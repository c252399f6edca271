// Package model defines shared data types used across twquote.
//
// Conventions:
//   - Prices: decimal.Decimal, exactly as quoted by the exchange (no float rounding)
//   - Timestamps: time.Time in Asia/Taipei
//   - Symbols: exchange code plus board ("tse" or "otc"), e.g. tse:2330
package model
