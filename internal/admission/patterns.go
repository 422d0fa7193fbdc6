package admission

import (
	"bytes"
	"net/http"
	"strings"
)

/* Byte-pattern indicators of injection and traversal attempts. Matching is
   case-insensitive against the raw body. The list is a first-line heuristic,
   not a WAF ruleset: patterns are chosen to be cheap and low-noise. */

type contentPattern struct {
	category string
	pattern  []byte
}

var contentPatterns = []contentPattern{
	{"sql_injection", []byte("union select")},
	{"sql_injection", []byte("; drop table")},
	{"sql_injection", []byte("; delete from")},
	{"sql_injection", []byte("or 1=1")},
	{"sql_injection", []byte("' or '")},
	{"path_traversal", []byte("../")},
	{"path_traversal", []byte("..\\")},
	{"path_traversal", []byte("/etc/passwd")},
	{"script_injection", []byte("<script")},
	{"script_injection", []byte("javascript:")},
	{"script_injection", []byte("onerror=")},
	{"script_injection", []byte("onload=")},
	{"command_injection", []byte("; rm -rf")},
	{"command_injection", []byte("$(curl")},
}

// scanContent reports the category of the first indicator found in body.
func scanContent(body []byte) (string, bool) {
	if len(body) == 0 {
		return "", false
	}
	lower := bytes.ToLower(body)
	for _, p := range contentPatterns {
		if bytes.Contains(lower, p.pattern) {
			return p.category, true
		}
	}
	return "", false
}

// ScannableContent reports whether the content check applies to a request:
// mutating methods with a non-multipart body. Uploads are never read.
func ScannableContent(method, contentType string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return false
	}
	return !strings.HasPrefix(strings.ToLower(contentType), "multipart/")
}
