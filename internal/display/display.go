// Package display renders a console snapshot of the latest quotes after
// each round.
package display

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"github.com/rickgao/twquote/internal/model"
	"github.com/rickgao/twquote/internal/poller"
	"github.com/rickgao/twquote/internal/run"
)

// Styles. Taiwan quotes show gains in red and losses in green.
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3B82F6"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	upStyle     = cellStyle.Foreground(lipgloss.Color("#EF4444"))
	downStyle   = cellStyle.Foreground(lipgloss.Color("#10B981"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

var headers = []string{"Symbol", "Name", "Last", "Chg", "Chg%", "Bid", "Ask", "Volume", "Time"}

const changeCol = 3

// Printer writes a snapshot table for each round.
type Printer struct {
	out   io.Writer
	state *run.State
}

// NewPrinter creates a Printer reading quotes from state.
func NewPrinter(out io.Writer, state *run.State) *Printer {
	return &Printer{out: out, state: state}
}

// PrintRound writes the snapshot for o. It matches poller.Hooks.Round.
func (p *Printer) PrintRound(o poller.Outcome) {
	fmt.Fprintln(p.out, RenderRound(o, p.state.LatestQuotes()))
}

// RenderRound renders the round summary line and the latest quote per symbol.
func RenderRound(o poller.Outcome, quotes []model.Quote) string {
	title := titleStyle.Render(fmt.Sprintf("Round %d", o.Round)) +
		mutedStyle.Render(fmt.Sprintf("  ok=%d failed=%d skipped=%d  %s",
			o.Successes, o.Failures, o.Skipped, o.Duration().Round(time.Millisecond)))

	rows := make([][]string, len(quotes))
	signs := make([]int, len(quotes))
	for i, q := range quotes {
		rows[i], signs[i] = quoteRow(q)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(signs) && col >= changeCol && col <= changeCol+1 {
				switch {
				case signs[row] > 0:
					return upStyle
				case signs[row] < 0:
					return downStyle
				}
			}
			return cellStyle
		})

	return lipgloss.JoinVertical(lipgloss.Left, title, t.String())
}

// quoteRow returns the table cells for q and the sign of its change.
func quoteRow(q model.Quote) ([]string, int) {
	last, chg, pct := "-", "", ""
	sign := 0
	if q.HasLast {
		last = q.Last.String()
		if prev := q.PrevClose.Decimal; q.PrevClose.Valid && !prev.IsZero() {
			diff := q.Last.Sub(prev)
			sign = diff.Sign()
			chg = signed(diff)
			pct = signed(diff.Div(prev).Mul(decimal.NewFromInt(100)).Round(2)) + "%"
		}
	}

	bid, ask := "-", "-"
	if l, ok := q.BestBid(); ok {
		bid = l.Price.String()
	}
	if l, ok := q.BestAsk(); ok {
		ask = l.Price.String()
	}

	ts := ""
	if !q.Timestamp.IsZero() {
		ts = q.Timestamp.In(model.Taipei).Format("15:04:05")
	}

	return []string{
		q.Symbol.String(),
		q.Name,
		last,
		chg,
		pct,
		bid,
		ask,
		strconv.FormatInt(q.Volume, 10),
		ts,
	}, sign
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.String()
	}
	return d.String()
}
