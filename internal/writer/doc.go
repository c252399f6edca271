// Package writer serializes a run's accumulated state to files.
//
// Artifacts:
//   - quotes_<stamp>_<tag>.csv: one row per quote, five-level depth flattened
//   - daily_<stamp>_<tag>.csv: one row per (symbol, date), when bars exist
//   - twquote_<stamp>_<tag>.xlsx: snapshots, last_quotes and daily sheets
//
// Every file is written to a temporary file in the output directory and
// renamed into place, so a reader never sees a partial artifact. CSV files
// carry a UTF-8 byte order mark for spreadsheet applications.
package writer
