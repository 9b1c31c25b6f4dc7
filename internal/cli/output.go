package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cryptolens/internal/analysis/signals"
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
	dim    = color.New(color.Faint)
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates a new Output instance.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")
	return &Output{
		writer:       cmd.OutOrStdout(),
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && !noColor && !color.NoColor && cmd.OutOrStdout() == os.Stdout,
	}
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.line(green, format, args...)
}

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) {
	o.line(red, format, args...)
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.line(yellow, format, args...)
}

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.line(cyan, format, args...)
}

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) {
	o.line(bold, format, args...)
}

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) {
	o.line(dim, format, args...)
}

func (o *Output) line(c *color.Color, format string, args ...interface{}) {
	fmt.Fprintln(o.writer, o.paint(c, fmt.Sprintf(format, args...)))
}

func (o *Output) paint(c *color.Color, text string) string {
	if !o.colorEnabled {
		return text
	}
	c.EnableColor()
	return c.Sprint(text)
}

// Green returns green colored text.
func (o *Output) Green(text string) string { return o.paint(green, text) }

// Red returns red colored text.
func (o *Output) Red(text string) string { return o.paint(red, text) }

// Yellow returns yellow colored text.
func (o *Output) Yellow(text string) string { return o.paint(yellow, text) }

// DimText returns dimmed text.
func (o *Output) DimText(text string) string { return o.paint(dim, text) }

// Change colors a signed percentage change.
func (o *Output) Change(pct float64) string {
	formatted := FormatChange(pct)
	switch {
	case pct > 0:
		return o.Green(formatted)
	case pct < 0:
		return o.Red(formatted)
	default:
		return formatted
	}
}

// Recommendation colors a recommendation by its direction.
func (o *Output) Recommendation(rec signals.Recommendation) string {
	switch rec {
	case signals.RecommendConsiderBuying:
		return o.Green("↑ " + rec.Label())
	case signals.RecommendHoldOrSell:
		return o.Red("↓ " + rec.Label())
	case signals.RecommendHold:
		return o.Yellow("→ " + rec.Label())
	default:
		return rec.Label()
	}
}

// Trend colors a trend message by the direction of its signal.
func (o *Output) Trend(t signals.Trend) string {
	switch signals.Recommend(t.Signal) {
	case signals.RecommendConsiderBuying, signals.RecommendHold:
		return o.Green(t.Label)
	case signals.RecommendHoldOrSell:
		return o.Red(t.Label)
	default:
		return t.Label
	}
}

// Volatility colors a volatility bucket.
func (o *Output) Volatility(v signals.Volatility) string {
	switch v.Level {
	case signals.VolatilityHigh:
		return o.Red(v.Label())
	case signals.VolatilityMedium:
		return o.Yellow(v.Label())
	default:
		return o.Green(v.Label())
	}
}

// Table represents a simple table for output.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{
		headers: headers,
		rows:    make([][]string, 0),
		output:  output,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visibleLen(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && visibleLen(cell) > widths[i] {
				widths[i] = visibleLen(cell)
			}
		}
	}

	t.printRow(t.headers, widths, true)
	t.printSeparator(widths)
	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, isHeader bool) {
	var parts []string
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		padded := cell + strings.Repeat(" ", widths[i]-visibleLen(cell))
		if isHeader {
			padded = t.output.paint(bold, padded)
		}
		parts = append(parts, padded)
	}
	t.output.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
}

func (t *Table) printSeparator(widths []int) {
	var parts []string
	for _, w := range widths {
		parts = append(parts, strings.Repeat("─", w))
	}
	t.output.Println(t.output.paint(dim, strings.Join(parts, "──")))
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripANSI removes ANSI escape codes from a string.
func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func visibleLen(s string) int {
	return len([]rune(stripANSI(s)))
}
