package notifier

import (
	"errors"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"StockHound/internal/model"
)

// NoResultsMessage is shown when a pass yields no rows.
const NoResultsMessage = "No stocks found within your budget."

// FormatPrice renders a price with thousands separators and two decimals.
func FormatPrice(p float64) string {
	return humanize.FormatFloat("#,###.##", p)
}

// FormatTable writes results as an aligned text table.
func FormatTable(w io.Writer, results []model.Result) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, NoResultsMessage)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tSymbol\tName\tPrice\tMA\tRSI\tBB\tTotal\t")
	for i, r := range results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.3f\t%.3f\t%.3f\t%.3f\t\n",
			i+1, r.Symbol, r.Name, FormatPrice(r.Price), r.MAScore, r.RSIScore, r.BBScore, r.TotalScore)
	}
	return tw.Flush()
}

// FormatReport formats the top results of a pass as a Telegram HTML message.
// limit <= 0 shows every row.
func FormatReport(results []model.Result, budget float64, limit int) string {
	var b strings.Builder

	b.WriteString("📊 <b>StockHound</b>")
	if budget > 0 {
		b.WriteString(fmt.Sprintf(" | budget $%s", FormatPrice(budget)))
	}
	b.WriteString("\n\n")

	if len(results) == 0 {
		b.WriteString(NoResultsMessage)
		return b.String()
	}

	shown := results
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for i, r := range shown {
		b.WriteString(fmt.Sprintf("%d. <b>%s</b> %s\n", i+1, html.EscapeString(r.Symbol), html.EscapeString(r.Name)))
		b.WriteString(fmt.Sprintf("   $%s | total %.3f (MA %.2f, RSI %.2f, BB %.2f)\n",
			FormatPrice(r.Price), r.TotalScore, r.MAScore, r.RSIScore, r.BBScore))
	}
	if hidden := len(results) - len(shown); hidden > 0 {
		b.WriteString(fmt.Sprintf("\n… and %d more\n", hidden))
	}
	return b.String()
}

// ErrBadCommand is returned by ParseScreenCommand for malformed input.
var ErrBadCommand = errors.New("usage: /screen <budget>")

// ParseScreenCommand parses "/screen <budget>". ok is false when text is not
// a screen command at all.
func ParseScreenCommand(text string) (budget float64, ok bool, err error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, false, nil
	}
	// Telegram appends the bot name in groups: /screen@StockHoundBot
	cmd, _, _ := strings.Cut(fields[0], "@")
	if cmd != "/screen" {
		return 0, false, nil
	}
	if len(fields) != 2 {
		return 0, true, ErrBadCommand
	}
	budget, err = strconv.ParseFloat(strings.TrimPrefix(fields[1], "$"), 64)
	if err != nil {
		return 0, true, ErrBadCommand
	}
	return budget, true, nil
}
