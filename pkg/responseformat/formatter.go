// Package responseformat encodes analysis results as JSON or MessagePack.
package responseformat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Supported formats
const (
	FormatJSON    = "json"
	FormatMsgPack = "msgpack"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgPack = "application/x-msgpack"
)

// Formatter handles encoding and writing responses in JSON or MessagePack format
type Formatter struct {
	// Indent pretty-prints JSON output when set
	Indent bool
}

// NewFormatter creates a new response formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// ParseFormat validates a format name; an empty name selects JSON
func ParseFormat(name string) (string, error) {
	switch strings.ToLower(name) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatMsgPack, "messagepack":
		return FormatMsgPack, nil
	default:
		return "", fmt.Errorf("unsupported format %q, use json or msgpack", name)
	}
}

// RequestFormat picks the response format for req. The format query parameter
// wins over the Accept header; JSON is the default.
func RequestFormat(req *http.Request) string {
	if q := req.URL.Query().Get("format"); q != "" {
		if f, err := ParseFormat(q); err == nil {
			return f
		}
	}
	if strings.Contains(req.Header.Get("Accept"), contentTypeMsgPack) {
		return FormatMsgPack
	}
	return FormatJSON
}

// WriteResponse writes data with the given status in the format the request asks for
func (f *Formatter) WriteResponse(w http.ResponseWriter, req *http.Request, status int, data any) error {
	format := RequestFormat(req)

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", ContentType(format))
	w.WriteHeader(status)

	return f.Encode(w, format, data)
}

// WriteError writes an error body of the form {"error": "..."}
func (f *Formatter) WriteError(w http.ResponseWriter, req *http.Request, status int, err error) error {
	return f.WriteResponse(w, req, status, ErrorResponse{Error: err.Error()})
}

// Encode writes data to w in format
func (f *Formatter) Encode(w io.Writer, format string, data any) error {
	if format == FormatMsgPack {
		encoder := msgpack.NewEncoder(w)
		encoder.SetCustomStructTag("json") // Use json tags for MessagePack
		return encoder.Encode(data)
	}

	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// ContentType returns the MIME type of format
func ContentType(format string) string {
	if format == FormatMsgPack {
		return contentTypeMsgPack
	}
	return contentTypeJSON
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}
