package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slotbook/slotbook-cli/internal/api"
	"github.com/slotbook/slotbook-cli/internal/appctx"
	"github.com/slotbook/slotbook-cli/internal/output"
)

// NewAPICmd creates the api command for raw API access.
func NewAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api <verb> <path>",
		Short: "Raw API access",
		Long: `Make raw requests to any booking API endpoint. Requests go through the
same session handling as every other command: an expired access cookie
is refreshed and the request replayed.`,
		Example: `  slotbook api get /appointments/?status=pending
  slotbook api patch /appointments/42/ --data '{"notes":"Bring photos"}'
  slotbook api post /businesses/3/services/ --data @service.json`,
	}

	cmd.AddCommand(
		newAPIVerbCmd(http.MethodGet, false),
		newAPIVerbCmd(http.MethodPost, true),
		newAPIVerbCmd(http.MethodPut, true),
		newAPIVerbCmd(http.MethodPatch, true),
		newAPIVerbCmd(http.MethodDelete, false),
	)

	return cmd
}

func newAPIVerbCmd(method string, withBody bool) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   strings.ToLower(method) + " <path>",
		Short: method + " request to the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			path, query, err := parsePath(args[0], app.Config.APIPrefix)
			if err != nil {
				return err
			}

			req := &api.Request{Method: method, Path: path, Query: query}
			if withBody {
				if data == "" {
					return output.ErrUsageHint("--data is required", `Pass JSON, @file.json, or @- for stdin`)
				}
				body, err := readBody(cmd.InOrStdin(), data)
				if err != nil {
					return err
				}
				req.Body = body
			}

			resp, err := app.Gateway.Do(cmd.Context(), req)
			if err != nil {
				return err
			}

			var result any = resp.Data
			if len(resp.Data) == 0 {
				result = map[string]any{"status": resp.StatusCode}
			}

			summary := method + " " + path
			if method == http.MethodGet {
				summary = apiSummary(resp.Data)
			} else if len(resp.Data) > 0 {
				summary += ": " + apiSummary(resp.Data)
			}
			return app.OK(result,
				output.WithSummary(summary),
				output.WithBreadcrumbs(apiBreadcrumbs(path)...),
			)
		},
	}

	if withBody {
		cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body, @file, or @- for stdin (required)")
	}
	return cmd
}

var urlPathPattern = regexp.MustCompile(`^https?://[^/]+(/[^?#]*)(?:\?([^#]*))?`)

// parsePath normalizes a path argument. Full URLs are reduced to their
// path, the API prefix is stripped, a leading slash is added, and any
// query string is split off.
func parsePath(input, prefix string) (string, url.Values, error) {
	var rawQuery string
	if m := urlPathPattern.FindStringSubmatch(input); m != nil {
		input, rawQuery = m[1], m[2]
	} else if p, q, ok := strings.Cut(input, "?"); ok {
		input, rawQuery = p, q
	}

	if !strings.HasPrefix(input, "/") {
		input = "/" + input
	}
	if prefix = strings.TrimRight(prefix, "/"); prefix != "" && strings.HasPrefix(input, prefix+"/") {
		input = strings.TrimPrefix(input, prefix)
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", nil, output.ErrUsage("Invalid query string: " + err.Error())
	}
	if len(query) == 0 {
		query = nil
	}
	return input, query, nil
}

// readBody parses --data as inline JSON, @file or @- (stdin).
func readBody(stdin io.Reader, data string) (any, error) {
	raw := []byte(data)
	if name, ok := strings.CutPrefix(data, "@"); ok {
		var err error
		if name == "-" {
			raw, err = io.ReadAll(stdin)
		} else {
			raw, err = os.ReadFile(name) //nolint:gosec // G304: path is given by the user
		}
		if err != nil {
			return nil, output.ErrUsage("Cannot read request body: " + err.Error())
		}
	}

	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, output.ErrUsageHint("Invalid JSON data", fmt.Sprintf("JSON parse error: %v", err))
	}
	return body, nil
}

// apiSummary describes a response body: a count for lists and pages, or a
// name for single objects.
func apiSummary(data []byte) string {
	var arr []any
	if err := json.Unmarshal(data, &arr); err == nil {
		return fmt.Sprintf("%d items", len(arr))
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return "API response"
	}

	if results, ok := obj["results"].([]any); ok {
		if count, ok := obj["count"].(float64); ok {
			return fmt.Sprintf("%d of %d items", len(results), int(count))
		}
		return fmt.Sprintf("%d items", len(results))
	}

	var title string
	for _, key := range []string{"name", "email", "customer_name", "status"} {
		if v, ok := obj[key].(string); ok && v != "" {
			title = v
			break
		}
	}
	if len(title) > 50 {
		title = title[:47] + "..."
	}
	if id, ok := obj["id"].(float64); ok {
		if title != "" {
			return fmt.Sprintf("#%d %s", int64(id), title)
		}
		return fmt.Sprintf("#%d", int64(id))
	}
	if title != "" {
		return title
	}
	return "API response"
}

var (
	appointmentPathPattern = regexp.MustCompile(`^/appointments/(\d+)/?$`)
	businessPathPattern    = regexp.MustCompile(`^/businesses/(\d+)/`)
)

// apiBreadcrumbs suggests the dedicated command for a well-known path.
func apiBreadcrumbs(path string) []output.Breadcrumb {
	var c output.Breadcrumb
	switch m := appointmentPathPattern.FindStringSubmatch(path); {
	case m != nil:
		c = crumb("show", "slotbook appointments show "+m[1], "Show with formatting")
	case strings.TrimSuffix(path, "/") == "/appointments":
		c = crumb("list", "slotbook appointments --date today", "List with filters and formatting")
	case businessPathPattern.MatchString(path):
		id := businessPathPattern.FindStringSubmatch(path)[1]
		c = crumb("business", "slotbook business show "+id, "Business with opening hours")
	case strings.HasPrefix(path, "/staff/"):
		c = crumb("staff", "slotbook staff", "List staff with formatting")
	default:
		return nil
	}
	return []output.Breadcrumb{c}
}
