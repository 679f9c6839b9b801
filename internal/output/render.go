package output

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/term"
	"github.com/muesli/termenv"

	"github.com/slotbook/slotbook-cli/internal/presenter"
)

// palette holds the colors used by styled output.
type palette struct {
	Primary, Muted, Foreground, Error, Warning, Success string
}

var defaultPalette = palette{
	Primary:    "#7C9CF5",
	Muted:      "#8A8F98",
	Foreground: "#E6E6E6",
	Error:      "#F7768E",
	Warning:    "#E0AF68",
	Success:    "#9ECE6A",
}

// Renderer handles styled terminal output.
type Renderer struct {
	width  int
	styled bool
	format presenter.FormatOptions

	Summary   lipgloss.Style
	Muted     lipgloss.Style
	Data      lipgloss.Style
	Error     lipgloss.Style
	Hint      lipgloss.Style
	Warning   lipgloss.Style
	Success   lipgloss.Style
	Header    lipgloss.Style
	Cell      lipgloss.Style
	CellMuted lipgloss.Style
}

// NewRenderer creates a renderer. Styling is enabled when writing to a TTY
// or when forceStyled is true, unless NO_COLOR is set.
func NewRenderer(opts Options, forceStyled bool) *Renderer {
	width, tty := terminalInfo(opts.Writer)
	styled := (tty || forceStyled) && os.Getenv("NO_COLOR") == ""

	if styled {
		lipgloss.SetColorProfile(termenv.TrueColor)
	} else {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	r := &Renderer{
		width:  width,
		styled: styled,
		format: formatOptions(opts),
	}

	p := defaultPalette
	fg := func(hex string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)) }
	r.Summary, r.Header = fg(p.Primary).Bold(true), fg(p.Foreground).Bold(true)
	r.Data, r.Cell = fg(p.Foreground), fg(p.Foreground)
	r.Muted, r.CellMuted, r.Hint = fg(p.Muted), fg(p.Muted), fg(p.Muted).Italic(true)
	r.Error, r.Warning, r.Success = fg(p.Error).Bold(true), fg(p.Warning), fg(p.Success)
	return r
}

func formatOptions(opts Options) presenter.FormatOptions {
	return presenter.FormatOptions{
		Locale:   opts.Locale,
		Location: opts.Location,
		Currency: opts.Currency,
	}
}

// terminalInfo reports the usable width (80 unless a terminal reports at
// least 40 columns) and whether w is a terminal.
func terminalInfo(w io.Writer) (width int, tty bool) {
	f, ok := w.(*os.File)
	if !ok {
		return 80, false
	}
	width = 80
	if cols, _, err := term.GetSize(f.Fd()); err == nil && cols >= 40 {
		width = cols
	}
	return width, term.IsTerminal(f.Fd())
}

// RenderResponse renders a success response to the writer.
func (r *Renderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString(r.Summary.Render(resp.Summary))
		b.WriteString("\n\n")
	}

	r.renderData(&b, NormalizeData(resp.Data), resp.Entity)

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n")
		r.renderBreadcrumbs(&b, resp.Breadcrumbs)
	}

	if parts := statsParts(resp.Meta); len(parts) > 0 {
		b.WriteString("\n")
		b.WriteString(r.Muted.Render("Stats: " + strings.Join(parts, " | ")))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response to the writer.
func (r *Renderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString(r.Error.Render("Error: " + resp.Error))
	b.WriteString("\n")

	for _, field := range sortedKeys(resp.Fields) {
		for _, msg := range resp.Fields[field] {
			b.WriteString(r.Warning.Render("  " + field + ": " + msg))
			b.WriteString("\n")
		}
	}

	if resp.Hint != "" {
		b.WriteString(r.Hint.Render("Hint: " + resp.Hint))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) renderData(b *strings.Builder, data any, entity string) {
	line := func(style lipgloss.Style, text string) { b.WriteString(style.Render(text) + "\n") }
	switch d := data.(type) {
	case []map[string]any:
		if len(d) == 0 {
			line(r.Muted, "(no results)")
			return
		}
		r.renderTable(b, d, presenter.Detect(d[0], entity))
	case map[string]any:
		r.renderObject(b, d, presenter.Detect(d, entity))
	case []any:
		if len(d) == 0 {
			line(r.Muted, "(no results)")
		}
		for _, item := range d {
			line(r.Data, "• "+formatCell(item))
		}
	case nil:
		line(r.Muted, "(no data)")
	default:
		line(r.Data, formatCell(d))
	}
}

func (r *Renderer) renderTable(b *strings.Builder, data []map[string]any, schema *presenter.EntitySchema) {
	columns := listColumns(data, schema)
	if len(columns) == 0 {
		return
	}
	columns = r.selectColumns(columns, data)

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.Header
			}
			if col < len(columns) && columns[col].Muted {
				return r.CellMuted
			}
			return r.Cell
		})

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.HeaderOrKey()
	}
	t.Headers(headers...)

	for _, item := range data {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = truncate(cellValue(col, item, r.format), 40)
		}
		t.Row(row...)
	}

	b.WriteString(t.String())
	b.WriteString("\n")
}

// selectColumns drops trailing columns until the table fits the terminal.
func (r *Renderer) selectColumns(cols []presenter.Column, data []map[string]any) []presenter.Column {
	widths := make([]int, len(cols))
	for i, col := range cols {
		widths[i] = lipgloss.Width(col.HeaderOrKey())
		for _, row := range data {
			if w := lipgloss.Width(truncate(cellValue(col, row, r.format), 40)); w > widths[i] {
				widths[i] = w
			}
		}
	}

	const padding = 2
	total := 0
	for i, w := range widths {
		total += w + padding
		if total > r.width && i > 0 {
			return cols[:i]
		}
	}
	return cols
}

func (r *Renderer) renderObject(b *strings.Builder, data map[string]any, schema *presenter.EntitySchema) {
	columns := detailColumns(data, schema)
	if len(columns) == 0 {
		b.WriteString(r.Muted.Render("(no data)"))
		b.WriteString("\n")
		return
	}

	labelWidth := 0
	for _, col := range columns {
		labelWidth = max(labelWidth, len(col.HeaderOrKey()))
	}
	for _, col := range columns {
		style := r.Data
		if col.Muted {
			style = r.CellMuted
		}
		label := r.Muted.Render(fmt.Sprintf("%-*s: ", labelWidth, col.HeaderOrKey()))
		b.WriteString(label + style.Render(cellValue(col, data, r.format)) + "\n")
	}

	if schema != nil && schema.Markdown != "" {
		if md, _ := data[schema.Markdown].(string); strings.TrimSpace(md) != "" {
			b.WriteString("\n")
			b.WriteString(r.renderMarkdown(md))
		}
	}
}

// renderMarkdown renders free text through glamour when styled, raw otherwise.
func (r *Renderer) renderMarkdown(md string) string {
	if !r.styled {
		return strings.TrimRight(md, "\n") + "\n"
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(r.width),
	)
	if err != nil {
		return md + "\n"
	}
	out, err := tr.Render(md)
	if err != nil {
		return md + "\n"
	}
	return out
}

func (r *Renderer) renderBreadcrumbs(b *strings.Builder, crumbs []Breadcrumb) {
	b.WriteString(r.Muted.Render("Next:"))
	b.WriteString("\n")
	for _, bc := range crumbs {
		line := r.Muted.Render("  " + bc.Cmd)
		if bc.Description != "" {
			line += r.Muted.Render("  # " + bc.Description)
		}
		b.WriteString(line + "\n")
	}
}

// Generic column ordering for data no schema describes.
var columnPriority = map[string]int{
	"id":          1,
	"name":        2,
	"title":       2,
	"email":       3,
	"start_time":  3,
	"status":      4,
	"end_time":    5,
	"description": 7,
	"created_at":  8,
	"updated_at":  9,
}

var mutedKeys = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// listColumns returns the schema's list columns, or columns inferred from
// the first row's scalar fields.
func listColumns(data []map[string]any, schema *presenter.EntitySchema) []presenter.Column {
	if schema != nil && len(schema.List) > 0 {
		return schema.List
	}
	return inferColumns(data[0])
}

func detailColumns(data map[string]any, schema *presenter.EntitySchema) []presenter.Column {
	if schema != nil && len(schema.Detail) > 0 {
		return schema.Detail
	}
	return inferColumns(data)
}

func inferColumns(row map[string]any) []presenter.Column {
	var cols []presenter.Column
	for key, val := range row {
		switch val.(type) {
		case map[string]any, []map[string]any, []any:
			continue
		}
		format := "text"
		if strings.HasSuffix(key, "_at") || strings.HasSuffix(key, "_time") {
			format = "datetime"
		}
		cols = append(cols, presenter.Column{Key: key, Format: format, Muted: mutedKeys[key]})
	}

	rank := func(key string) int {
		if p, ok := columnPriority[key]; ok {
			return p
		}
		return 50
	}
	slices.SortFunc(cols, func(a, b presenter.Column) int {
		return cmp.Or(cmp.Compare(rank(a.Key), rank(b.Key)), strings.Compare(a.Key, b.Key))
	})
	return cols
}

func cellValue(col presenter.Column, row map[string]any, opts presenter.FormatOptions) string {
	return presenter.FormatValue(col, presenter.LookupPath(row, col.Key), opts)
}

func formatCell(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	return fmt.Sprint(val)
}

// truncate shortens s to n runes, ending in "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}

func sortedKeys(m map[string][]string) []string {
	return slices.Sorted(maps.Keys(m))
}

// statsParts flattens meta["stats"] into "Key: value" fragments, sorted by
// key.
func statsParts(meta map[string]any) []string {
	stats, _ := meta["stats"].(map[string]any)
	var parts []string
	for _, k := range slices.Sorted(maps.Keys(stats)) {
		parts = append(parts, presenter.HumanizeKey(k)+": "+formatCell(stats[k]))
	}
	return parts
}

// MarkdownRenderer outputs literal Markdown syntax (portable, pipeable).
type MarkdownRenderer struct {
	format presenter.FormatOptions
}

// NewMarkdownRenderer creates a renderer for literal Markdown output.
func NewMarkdownRenderer(opts Options) *MarkdownRenderer {
	return &MarkdownRenderer{format: formatOptions(opts)}
}

// RenderResponse renders a success response as literal Markdown.
func (r *MarkdownRenderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString("## " + resp.Summary + "\n\n")
	}

	switch d := NormalizeData(resp.Data).(type) {
	case []map[string]any:
		if len(d) == 0 {
			b.WriteString("*No results*\n")
			break
		}
		r.renderTable(&b, d, presenter.Detect(d[0], resp.Entity))
	case map[string]any:
		r.renderObject(&b, d, presenter.Detect(d, resp.Entity))
	case []any:
		if len(d) == 0 {
			b.WriteString("*No results*\n")
			break
		}
		for _, item := range d {
			b.WriteString("- " + formatCell(item) + "\n")
		}
	case nil:
		b.WriteString("*No data*\n")
	default:
		b.WriteString(formatCell(d) + "\n")
	}

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n### Next\n\n")
		for _, bc := range resp.Breadcrumbs {
			line := "- `" + bc.Cmd + "`"
			if bc.Description != "" {
				line += ": " + bc.Description
			}
			b.WriteString(line + "\n")
		}
	}

	if parts := statsParts(resp.Meta); len(parts) > 0 {
		b.WriteString("\n*Stats: " + strings.Join(parts, " | ") + "*\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response as literal Markdown.
func (r *MarkdownRenderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString("**Error:** " + resp.Error + "\n")
	for _, field := range sortedKeys(resp.Fields) {
		for _, msg := range resp.Fields[field] {
			b.WriteString("- `" + field + "`: " + msg + "\n")
		}
	}
	if resp.Hint != "" {
		b.WriteString("\n*Hint: " + resp.Hint + "*\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *MarkdownRenderer) renderTable(b *strings.Builder, data []map[string]any, schema *presenter.EntitySchema) {
	cols := listColumns(data, schema)
	if len(cols) == 0 {
		return
	}

	headers := make([]string, len(cols))
	seps := make([]string, len(cols))
	for i, col := range cols {
		headers[i] = col.HeaderOrKey()
		seps[i] = "---"
	}
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("| " + strings.Join(seps, " | ") + " |\n")

	for _, item := range data {
		cells := make([]string, len(cols))
		for i, col := range cols {
			cells[i] = strings.ReplaceAll(cellValue(col, item, r.format), "|", "\\|")
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
}

func (r *MarkdownRenderer) renderObject(b *strings.Builder, data map[string]any, schema *presenter.EntitySchema) {
	cols := detailColumns(data, schema)
	if len(cols) == 0 {
		b.WriteString("*No data*\n")
		return
	}
	for _, col := range cols {
		b.WriteString("- **" + col.HeaderOrKey() + ":** " + cellValue(col, data, r.format) + "\n")
	}
	if schema != nil && schema.Markdown != "" {
		if md, _ := data[schema.Markdown].(string); strings.TrimSpace(md) != "" {
			b.WriteString("\n" + strings.TrimRight(md, "\n") + "\n")
		}
	}
}
