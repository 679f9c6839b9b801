package output

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/slotbook/slotbook-cli/internal/presenter"
)

// Response is the success envelope for JSON output.
type Response struct {
	OK          bool           `json:"ok"`
	Data        any            `json:"data,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Breadcrumbs []Breadcrumb   `json:"breadcrumbs,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`

	// Entity hints the presenter schema used by styled/Markdown output.
	Entity string `json:"-"`
}

// Breadcrumb is a suggested follow-up action.
type Breadcrumb struct {
	Action      string `json:"action"`
	Cmd         string `json:"cmd"`
	Description string `json:"description"`
}

// ErrorResponse is the error envelope for JSON output.
type ErrorResponse struct {
	OK     bool                `json:"ok"`
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Hint   string              `json:"hint,omitempty"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// Format specifies the output format.
type Format int

const (
	FormatAuto     Format = iota // Auto-detect: TTY → Styled, non-TTY → JSON
	FormatJSON                   // Full envelope
	FormatMarkdown               // Literal Markdown syntax (portable, pipeable)
	FormatStyled                 // ANSI styled output (forced, even when piped)
	FormatQuiet                  // Data only
	FormatIDs                    // One id per line
	FormatCount                  // Number of items
)

// ParseFormat maps a config value to a Format. Unknown values yield FormatAuto.
func ParseFormat(s string) Format {
	switch s {
	case "json":
		return FormatJSON
	case "markdown", "md":
		return FormatMarkdown
	case "styled":
		return FormatStyled
	case "quiet":
		return FormatQuiet
	}
	return FormatAuto
}

// Options controls output behavior.
type Options struct {
	Format Format
	Writer io.Writer

	// JQ, when set, filters the response data through a jq expression and
	// prints the results instead of the envelope.
	JQ string

	// Presentation context for styled and Markdown output.
	Locale   presenter.Locale
	Location *time.Location
	Currency string
}

// Writer handles all output formatting.
type Writer struct {
	opts Options
}

// New creates a new output writer.
func New(opts Options) *Writer {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Writer{opts: opts}
}

// Options returns the writer's options.
func (w *Writer) Options() Options {
	return w.opts
}

// OK outputs a success response.
func (w *Writer) OK(data any, opts ...ResponseOption) error {
	resp := &Response{OK: true, Data: data}
	for _, opt := range opts {
		opt(resp)
	}
	if w.opts.JQ != "" {
		return w.writeJQ(resp.Data)
	}
	return w.write(resp)
}

// Err outputs an error response.
func (w *Writer) Err(err error) error {
	e := AsError(err)
	resp := &ErrorResponse{
		OK:     false,
		Error:  e.Message,
		Code:   e.Code,
		Hint:   e.Hint,
		Fields: e.Fields,
	}
	return w.write(resp)
}

// EffectiveFormat resolves FormatAuto: styled on a terminal, JSON
// otherwise.
func (w *Writer) EffectiveFormat() Format {
	if w.opts.Format != FormatAuto {
		return w.opts.Format
	}
	if _, tty := terminalInfo(w.opts.Writer); tty {
		return FormatStyled
	}
	return FormatJSON
}

func (w *Writer) write(v any) error {
	resp, isResp := v.(*Response)
	format := w.EffectiveFormat()
	switch {
	case format == FormatQuiet && isResp:
		return w.writeJSON(resp.Data)
	case format == FormatIDs && isResp:
		return w.writeIDs(resp.Data)
	case format == FormatCount && isResp:
		fmt.Fprintln(w.opts.Writer, countItems(resp.Data))
		return nil
	case format == FormatMarkdown:
		return w.render(NewMarkdownRenderer(w.opts), v)
	case format == FormatStyled:
		return w.render(NewRenderer(w.opts, true), v)
	}
	return w.writeJSON(v)
}

type responseRenderer interface {
	RenderResponse(io.Writer, *Response) error
	RenderError(io.Writer, *ErrorResponse) error
}

func (w *Writer) render(r responseRenderer, v any) error {
	switch resp := v.(type) {
	case *Response:
		return r.RenderResponse(w.opts.Writer, resp)
	case *ErrorResponse:
		return r.RenderError(w.opts.Writer, resp)
	}
	return w.writeJSON(v)
}

func (w *Writer) writeJSON(v any) error {
	enc := json.NewEncoder(w.opts.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeIDs prints the id of each record, one per line.
func (w *Writer) writeIDs(data any) error {
	var records []map[string]any
	switch d := NormalizeData(data).(type) {
	case []map[string]any:
		records = d
	case map[string]any:
		records = []map[string]any{d}
	}
	for _, rec := range records {
		if id, ok := rec["id"]; ok {
			fmt.Fprintln(w.opts.Writer, plainID(id))
		}
	}
	return nil
}

// countItems is the list length, 0 for no data and 1 for a single record.
func countItems(data any) int {
	switch d := NormalizeData(data).(type) {
	case []any:
		return len(d)
	case []map[string]any:
		return len(d)
	case nil:
		return 0
	}
	return 1
}

// plainID prints JSON numbers without an exponent.
func plainID(id any) string {
	if f, ok := id.(float64); ok && f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return fmt.Sprint(id)
}

// NormalizeData turns API payloads and typed values into plain
// map/slice values. Lists whose elements are all objects become
// []map[string]any.
func NormalizeData(data any) any {
	switch data.(type) {
	case []map[string]any, map[string]any, []any, string, nil:
		return data
	}
	raw, ok := data.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(data)
		if err != nil {
			return data
		}
		raw = b
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return data
	}
	list, ok := v.([]any)
	if !ok {
		return v
	}
	records := make([]map[string]any, 0, len(list))
	for _, item := range list {
		rec, ok := item.(map[string]any)
		if !ok {
			return v
		}
		records = append(records, rec)
	}
	return records
}

// ResponseOption modifies a Response.
type ResponseOption func(*Response)

// WithSummary adds a summary to the response.
func WithSummary(s string) ResponseOption {
	return func(r *Response) { r.Summary = s }
}

// WithBreadcrumbs adds breadcrumbs to the response.
func WithBreadcrumbs(b ...Breadcrumb) ResponseOption {
	return func(r *Response) { r.Breadcrumbs = append(r.Breadcrumbs, b...) }
}

// WithEntity selects the presenter schema for human-readable output.
func WithEntity(entity string) ResponseOption {
	return func(r *Response) { r.Entity = entity }
}

// WithContext adds context to the response.
func WithContext(key string, value any) ResponseOption {
	return func(r *Response) {
		if r.Context == nil {
			r.Context = make(map[string]any)
		}
		r.Context[key] = value
	}
}

// WithMeta adds metadata to the response.
func WithMeta(key string, value any) ResponseOption {
	return func(r *Response) {
		if r.Meta == nil {
			r.Meta = make(map[string]any)
		}
		r.Meta[key] = value
	}
}
