// Package output provides JSON/Markdown/styled output formatting and
// structured errors with stable exit codes.
package output

// Exit codes.
const (
	ExitOK         = 0  // Success
	ExitUsage      = 1  // Invalid arguments or flags
	ExitNotFound   = 2  // Resource not found
	ExitAuth       = 3  // Not authenticated or session expired
	ExitForbidden  = 4  // Access denied
	ExitRateLimit  = 5  // Rate limited (429)
	ExitNetwork    = 6  // Connection/DNS/timeout error
	ExitAPI        = 7  // Server returned error
	ExitValidation = 8  // Server rejected the payload (400)
	ExitConflict   = 9  // Slot taken or state conflict (409)
	ExitAmbiguous  = 10 // A name matched more than one record
)

// Error codes for the JSON envelope.
const (
	CodeUsage      = "usage"
	CodeNotFound   = "not_found"
	CodeAuth       = "auth_required"
	CodeForbidden  = "forbidden"
	CodeRateLimit  = "rate_limit"
	CodeNetwork    = "network"
	CodeAPI        = "api_error"
	CodeValidation = "validation"
	CodeConflict   = "conflict"
	CodeAmbiguous  = "ambiguous"
)

// ExitCodeFor returns the exit code for a given error code.
func ExitCodeFor(code string) int {
	switch code {
	case CodeUsage:
		return ExitUsage
	case CodeNotFound:
		return ExitNotFound
	case CodeAuth:
		return ExitAuth
	case CodeForbidden:
		return ExitForbidden
	case CodeRateLimit:
		return ExitRateLimit
	case CodeNetwork:
		return ExitNetwork
	case CodeValidation:
		return ExitValidation
	case CodeConflict:
		return ExitConflict
	case CodeAmbiguous:
		return ExitAmbiguous
	default:
		return ExitAPI
	}
}
