package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// Board is the Taiwan market a security trades on.
type Board string

const (
	BoardUnknown Board = ""
	BoardTSE     Board = "tse" // Taiwan Stock Exchange (listed)
	BoardOTC     Board = "otc" // Taipei Exchange (over-the-counter)
)

// ErrInvalidSymbol is returned for codes that do not look like a TWSE/TPEx code.
var ErrInvalidSymbol = errors.New("invalid symbol")

// codePattern matches stock, ETF and suffixed codes: 2330, 0050, 00878, 2881A.
var codePattern = regexp.MustCompile(`^[0-9]{4,6}[A-Z]?$`)

// Symbol is an exchange-qualified security identifier.
type Symbol struct {
	Code  string
	Board Board // BoardUnknown until resolved
}

// String returns "board:code", or just the code when the board is unknown.
func (s Symbol) String() string {
	if s.Board == BoardUnknown {
		return s.Code
	}
	return string(s.Board) + ":" + s.Code
}

// WithBoard returns a copy of s on the given board.
func (s Symbol) WithBoard(b Board) Symbol {
	s.Board = b
	return s
}

// ParseSymbol accepts "2330", "tse:2330", "otc_3008", "2330.TW" and
// "3008.TWO". Full-width digits are folded to ASCII first.
func ParseSymbol(raw string) (Symbol, error) {
	s := strings.ToUpper(strings.TrimSpace(width.Narrow.String(raw)))
	if s == "" {
		return Symbol{}, fmt.Errorf("%w: empty", ErrInvalidSymbol)
	}

	board := BoardUnknown
	if i := strings.IndexAny(s, ":_"); i > 0 {
		b, err := ParseBoard(s[:i])
		if err != nil {
			return Symbol{}, fmt.Errorf("%w: %q: %v", ErrInvalidSymbol, raw, err)
		}
		board, s = b, s[i+1:]
	}

	switch {
	case strings.HasSuffix(s, ".TWO"):
		board, s = BoardOTC, strings.TrimSuffix(s, ".TWO")
	case strings.HasSuffix(s, ".TW"):
		board, s = BoardTSE, strings.TrimSuffix(s, ".TW")
	case strings.HasSuffix(s, ".OTC"):
		board, s = BoardOTC, strings.TrimSuffix(s, ".OTC")
	case strings.HasSuffix(s, ".TSE"):
		board, s = BoardTSE, strings.TrimSuffix(s, ".TSE")
	}

	if !codePattern.MatchString(s) {
		return Symbol{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}
	return Symbol{Code: s, Board: board}, nil
}

// ParseBoard parses "tse"/"otc" case-insensitively.
func ParseBoard(s string) (Board, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tse", "twse":
		return BoardTSE, nil
	case "otc", "tpex":
		return BoardOTC, nil
	default:
		return BoardUnknown, fmt.Errorf("unknown board %q", s)
	}
}

// ParseSymbols parses and deduplicates a symbol list, preserving order.
// The same code given on two different boards is an error.
func ParseSymbols(raw []string) ([]Symbol, error) {
	out := make([]Symbol, 0, len(raw))
	seen := make(map[string]int, len(raw))
	for _, r := range raw {
		sym, err := ParseSymbol(r)
		if err != nil {
			return nil, err
		}
		if i, ok := seen[sym.Code]; ok {
			prev := out[i]
			switch {
			case prev.Board == sym.Board || sym.Board == BoardUnknown:
			case prev.Board == BoardUnknown:
				out[i] = sym
			default:
				return nil, fmt.Errorf("%w: %s listed on both %s and %s", ErrInvalidSymbol, sym.Code, prev.Board, sym.Board)
			}
			continue
		}
		seen[sym.Code] = len(out)
		out = append(out, sym)
	}
	return out, nil
}
