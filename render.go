package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	markdown "github.com/vlanse/go-term-markdown"
	"golang.org/x/term"

	"github.com/elisa-itb/elisa/analysis"
	"github.com/elisa-itb/elisa/dashboard"
	"github.com/elisa-itb/elisa/notebook"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Background(lipgloss.Color("238"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("171"))
)

// heatShades are the cell glyphs from coldest to hottest.
var heatShades = []string{"·", "░", "▒", "▓", "█"}

// terminalWidth returns the stdout width, or 80 when it cannot be read.
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// renderer turns results and reports into terminal text. With styled off
// it emits plain text suitable for pipes.
type renderer struct {
	width  int
	styled bool
}

func newRenderer(width int, styled bool) renderer {
	if width <= 0 {
		width = 80
	}
	return renderer{width: width, styled: styled}
}

func (r renderer) style(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

var markdownCache = struct {
	sync.Mutex
	cache map[string]string
}{cache: make(map[string]string)}

// markdown renders text as terminal markdown, caching by content and width.
func (r renderer) markdown(text string) string {
	text = strings.TrimRight(text, " \t\r\n")
	if !r.styled || text == "" {
		return text
	}
	key := fmt.Sprintf("%s__%d", text, r.width)

	markdownCache.Lock()
	defer markdownCache.Unlock()
	if cached, ok := markdownCache.cache[key]; ok {
		return cached
	}
	rendered := strings.TrimRight(string(markdown.Render(text, r.width, 0)), " \t\r\n")
	markdownCache.cache[key] = rendered
	return rendered
}

// formatColumnTitle turns a snake_case column into a heading: the words
// are split on underscores and only the first is capitalised.
func formatColumnTitle(title string) string {
	words := strings.Split(title, "_")
	if len(words) > 0 && words[0] != "" {
		words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	}
	return strings.Join(words, " ")
}

// columnHasWord reports whether word is one of the '_', '-' or space
// separated words of column, ignoring case.
func columnHasWord(column, word string) bool {
	words := strings.FieldsFunc(strings.ToLower(column), func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	return slices.Contains(words, word)
}

// formatCellValue renders one dataset value. Columns with a "valuation" word
// are billions of dollars; columns with a "rate" word are fractions shown as
// percentages. Unparseable values in those columns render empty.
func formatCellValue(column string, v any) string {
	switch {
	case columnHasWord(column, "valuation"):
		f, ok := toFloat(v)
		if !ok {
			return ""
		}
		return "$" + decimal.NewFromFloat(f).Round(2).String() + "B"
	case columnHasWord(column, "rate"):
		f, ok := toFloat(v)
		if !ok {
			return ""
		}
		return decimal.NewFromFloat(f).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
	}

	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// renderTable lays out a header row and body rows with padded columns.
func (r renderer) renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := range headers {
			if i < len(row) {
				widths[i] = max(widths[i], lipgloss.Width(row[i]))
			}
		}
	}

	line := func(cells []string) string {
		parts := make([]string, len(headers))
		for i := range headers {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	var b strings.Builder
	head := line(headers)
	if r.styled {
		head = headerStyle.Render(head)
	}
	b.WriteString(head)
	b.WriteByte('\n')
	for _, row := range rows {
		b.WriteString(line(row))
		b.WriteByte('\n')
	}
	return b.String()
}

// resultColumns falls back to the first row's key order when the item
// names no columns.
func resultColumns(item analysis.ResultItem) []string {
	if len(item.Columns) > 0 {
		return item.Columns
	}
	if len(item.Dataset) > 0 {
		return item.Dataset[0].Keys
	}
	return nil
}

// chartable mirrors when a chart can be drawn at all: at least two rows
// and more than one column.
func chartable(item analysis.ResultItem) bool {
	return len(item.Dataset) >= 2 && len(resultColumns(item)) > 1
}

func (r renderer) renderResult(item analysis.ResultItem) string {
	var b strings.Builder
	b.WriteString(r.style(titleStyle, "Analysis Results:"))
	b.WriteString("\n")
	b.WriteString(r.markdown(item.Explanation))
	b.WriteString("\n")

	if !item.HasDataset() {
		return b.String()
	}

	cols := resultColumns(item)
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = formatColumnTitle(c)
	}
	rows := make([][]string, len(item.Dataset))
	for i, row := range item.Dataset {
		cells := make([]string, len(cols))
		for j, c := range cols {
			v, _ := row.Get(c)
			cells[j] = formatCellValue(c, v)
		}
		rows[i] = cells
	}
	b.WriteString("\n")
	b.WriteString(r.renderTable(headers, rows))

	if item.VisualizationType != "" {
		label := "Chart: " + strings.ReplaceAll(item.VisualizationType, "_", " ")
		if !chartable(item) {
			label += " (not enough data to chart)"
		}
		b.WriteString(r.style(mutedStyle, label))
		b.WriteString("\n")
	}
	return b.String()
}

func (r renderer) renderProgress(p analysis.ProgressEvent) string {
	return fmt.Sprintf("[%3.0f%%] %s", p.Progress*100, p.Message)
}

// renderState prints a finished session: its results, or its error.
func (r renderer) renderState(st analysis.State) string {
	var b strings.Builder
	switch st.Status {
	case analysis.StatusFailed:
		b.WriteString(r.style(errorStyle, "Error: "+errString(st.Err)))
		b.WriteString("\n")
	case analysis.StatusCancelled:
		b.WriteString(r.style(mutedStyle, "Cancelled."))
		b.WriteString("\n")
	}

	for i, item := range st.Results {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(r.renderResult(item))
	}

	if st.Status.Terminal() {
		b.WriteString(r.style(mutedStyle, fmt.Sprintf("%s in %s (model %s, session %s)",
			st.Status, st.Elapsed().Round(100*time.Millisecond), st.Query.Model, shortID(st.ID))))
		b.WriteString("\n")
	}
	return b.String()
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// renderNotebook lists every code cell with its outline and outputs.
func (r renderer) renderNotebook(ctx context.Context, raw json.RawMessage, o *notebook.Outliner) (string, error) {
	nb, err := notebook.Decode(raw)
	if err != nil {
		return "", err
	}
	cells := nb.CodeCells()
	if len(cells) == 0 {
		return r.style(mutedStyle, "No notebook code.") + "\n", nil
	}

	var outlines [][]notebook.Symbol
	if o != nil {
		outlines, err = o.OutlineNotebook(ctx, nb)
		if err != nil {
			return "", err
		}
	}

	var b strings.Builder
	for i, c := range cells {
		b.WriteString(r.style(titleStyle, fmt.Sprintf("In [%d]:", i+1)))
		b.WriteString("\n")
		if i < len(outlines) {
			for _, sym := range outlines[i] {
				b.WriteString(r.style(labelStyle, fmt.Sprintf("  %-8s L%-3d %s", sym.Kind, sym.Line, sym.Signature)))
				b.WriteString("\n")
			}
		}
		b.WriteString(strings.TrimRight(c.Source, "\n"))
		b.WriteString("\n")
		for _, out := range c.Outputs {
			b.WriteString(r.style(mutedStyle, strings.TrimRight(out.Text, "\n")))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (r renderer) renderSummary(title string, s *dashboard.Summary) string {
	if s == nil {
		return fmt.Sprintf("%s: N/A\n", r.style(labelStyle, title))
	}
	return fmt.Sprintf("%s: %s kWh total, %s kWh avg, IDR %s total, IDR %s avg\n",
		r.style(labelStyle, title),
		dashboard.FormatNumber(s.TotalDaya, 2), dashboard.FormatNumber(s.AvgDaya, 2),
		dashboard.FormatNumber(s.TotalCost, 2), dashboard.FormatNumber(s.AvgCost, 2))
}

func (r renderer) renderAnalysis(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return "\n" + r.style(titleStyle, "AI Analysis:") + "\n" + r.markdown(text) + "\n"
}

func (r renderer) renderDaily(date string, rep *dashboard.Report[dashboard.DailyReport]) string {
	var b strings.Builder
	b.WriteString(r.style(titleStyle, "Daily usage "+date))
	b.WriteString("\n")
	b.WriteString(r.renderSummary("Today", &rep.Data.Today))
	b.WriteString(r.renderSummary("Previous month", rep.Data.PreviousMonth))
	b.WriteString("\n")

	rows := make([][]string, len(rep.Data.HourlyData))
	for i, h := range rep.Data.HourlyData {
		rows[i] = []string{h.Hour, dashboard.FormatNumber(h.Energy, 2), dashboard.FormatNumber(h.Cost, 2)}
	}
	b.WriteString(r.renderTable([]string{"Hour", "Energy (kWh)", "Cost (IDR)"}, rows))
	b.WriteString(r.renderAnalysis(rep.Analysis))
	return b.String()
}

func (r renderer) renderMonthly(month string, rep *dashboard.Report[dashboard.MonthlyReport]) string {
	var b strings.Builder
	b.WriteString(r.style(titleStyle, "Monthly usage "+month))
	b.WriteString("\n")
	b.WriteString(r.renderSummary("This month", &rep.Data.Month))
	b.WriteString(r.renderSummary("Previous month", rep.Data.PreviousMonth))
	b.WriteString("\n")

	rows := make([][]string, len(rep.Data.DailyData))
	for i, d := range rep.Data.DailyData {
		rows[i] = []string{
			d.Timestamp,
			dashboard.FormatNumber(d.Energy, 2),
			dashboard.FormatNumber(d.Cost, 2),
			dashboard.FormatNumber(d.Phase1, 2),
			dashboard.FormatNumber(d.Phase2, 2),
			dashboard.FormatNumber(d.Phase3, 2),
		}
	}
	b.WriteString(r.renderTable([]string{"Date", "Energy (kWh)", "Cost (IDR)", "Phase 1", "Phase 2", "Phase 3"}, rows))
	b.WriteString(r.renderAnalysis(rep.Analysis))
	return b.String()
}

func (r renderer) renderNow(date string, rep *dashboard.Report[dashboard.NowReport]) string {
	var b strings.Builder
	b.WriteString(r.style(titleStyle, "Current usage "+date))
	b.WriteString("\n")
	if n := len(rep.Data.ChartData); n > 0 {
		last := rep.Data.ChartData[n-1]
		fmt.Fprintf(&b, "%s: %s kW at %s\n", r.style(labelStyle, "Latest power"),
			dashboard.FormatNumber(last.Power, 2), last.Timestamp)
	}
	b.WriteString(r.renderSummary("Today", &rep.Data.Today))
	b.WriteString(r.renderSummary("Previous month", rep.Data.PreviousMonth))
	b.WriteString(r.renderAnalysis(rep.Analysis))
	return b.String()
}

func (r renderer) renderHeatmap(rep *dashboard.Report[dashboard.HeatmapReport]) string {
	g := dashboard.BuildGrid(rep.Data.Heatmap)

	var b strings.Builder
	b.WriteString(r.style(titleStyle, fmt.Sprintf("Weekly heatmap %s to %s", rep.Data.Dates.Start, rep.Data.Dates.End)))
	b.WriteString("\n     ")
	for h := 0; h < 24; h++ {
		if h%3 == 0 {
			fmt.Fprintf(&b, "%-3d", h)
		}
	}
	b.WriteString("\n")

	for row := 0; row < 7; row++ {
		fmt.Fprintf(&b, "%-4s ", dashboard.DayNames[row][:3])
		for h := 0; h < 24; h++ {
			if !g.Present[row][h] {
				b.WriteString(" ")
				continue
			}
			b.WriteString(heatShades[g.Level(g.Values[row][h], len(heatShades))])
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s min %s kWh, max %s kWh\n", r.style(mutedStyle, strings.Join(heatShades, "")),
		dashboard.FormatNumber(g.Min, 2), dashboard.FormatNumber(g.Max, 2))
	b.WriteString(r.renderAnalysis(rep.Analysis))
	return b.String()
}

func (r renderer) renderCompare(month string, rep *dashboard.Report[dashboard.CompareReport], info []dashboard.FacultyInfo) string {
	d := rep.Data.Data

	var b strings.Builder
	b.WriteString(r.style(titleStyle, "Faculty comparison "+month))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s: %s (%s kWh, IDR %s)\n", r.style(labelStyle, "Highest"), d.Max.Fakultas,
		dashboard.FormatNumber(d.Max.Energy, 2), dashboard.FormatNumber(d.Max.Cost, 2))
	fmt.Fprintf(&b, "%s: %s (%s kWh, IDR %s)\n", r.style(labelStyle, "Lowest"), d.Min.Fakultas,
		dashboard.FormatNumber(d.Min.Energy, 2), dashboard.FormatNumber(d.Min.Cost, 2))
	fmt.Fprintf(&b, "%s: %s kWh, IDR %s\n", r.style(labelStyle, "Total"),
		dashboard.FormatNumber(d.Total.Energy, 2), dashboard.FormatNumber(d.Total.Cost, 2))
	fmt.Fprintf(&b, "%s: %s kWh, IDR %s\n\n", r.style(labelStyle, "Average"),
		dashboard.FormatNumber(d.Average.Energy, 2), dashboard.FormatNumber(d.Average.Cost, 2))

	if top := dashboard.TopByEnergy(rep.Data.Value, 5); len(top) > 0 {
		b.WriteString(r.style(headerStyle, "Top consumers"))
		b.WriteString("\n")
		for i, f := range top {
			fmt.Fprintf(&b, "%d. %s %s kWh\n", i+1, f.Fakultas, dashboard.FormatNumber(f.Energy, 2))
		}
		b.WriteString("\n")
	}

	rows := make([][]string, len(info))
	for i, f := range info {
		rows[i] = []string{
			f.Faculty,
			dashboard.FormatNumber(f.Energy, 2),
			dashboard.FormatNumber(f.Cost, 2),
			dashboard.FormatNumber(f.Area, 2),
			dashboard.FormatNumber(f.IKE, 2),
			dashboard.FormatNumber(f.Students, 0),
			dashboard.FormatNumber(f.SpecificEnergy, 2),
		}
	}
	b.WriteString(r.renderTable([]string{"Faculty", "Energy (kWh)", "Cost (IDR)", "Area (m2)", "IKE", "Students", "kWh/student"}, rows))
	b.WriteString(r.renderAnalysis(rep.Analysis))
	return b.String()
}

func (r renderer) renderOptions(title string, opts []dashboard.Option) string {
	rows := make([][]string, len(opts))
	for i, o := range opts {
		rows[i] = []string{o.Value, o.Label}
	}
	return r.style(titleStyle, title) + "\n" + r.renderTable([]string{"Value", "Label"}, rows)
}
