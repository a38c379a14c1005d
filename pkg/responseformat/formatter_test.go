package responseformat

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type payload struct {
	SeriesName string  `json:"series_name"`
	Score      float64 `json:"score"`
}

func TestRequestFormat(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		accept   string
		expected string
	}{
		{"default", "/analyze", "", FormatJSON},
		{"query parameter", "/analyze?format=msgpack", "", FormatMsgPack},
		{"accept header", "/analyze", "application/x-msgpack", FormatMsgPack},
		{"query wins", "/analyze?format=json", "application/x-msgpack", FormatJSON},
		{"unknown query falls back", "/analyze?format=xml", "", FormatJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			assert.Equal(t, tt.expected, RequestFormat(req))
		})
	}
}

func TestWriteResponseJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	require.NoError(t, NewFormatter().WriteResponse(rec, req, http.StatusCreated, payload{"cgm", 0.8}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var got payload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, payload{"cgm", 0.8}, got)
}

func TestWriteResponseMsgPackUsesJSONTags(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x?format=msgpack", nil)

	require.NoError(t, NewFormatter().WriteResponse(rec, req, http.StatusOK, payload{"cgm", 0.8}))

	assert.Equal(t, "application/x-msgpack", rec.Header().Get("Content-Type"))
	var got map[string]any
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "cgm", got["series_name"])
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	require.NoError(t, NewFormatter().WriteError(rec, req, http.StatusBadRequest, errors.New("samples out of order")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"samples out of order"}`, rec.Body.String())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("MsgPack")
	require.NoError(t, err)
	assert.Equal(t, FormatMsgPack, f)

	_, err = ParseFormat("csv")
	assert.Error(t, err)
}

func TestEncodeIndent(t *testing.T) {
	var buf bytes.Buffer
	f := &Formatter{Indent: true}
	require.NoError(t, f.Encode(&buf, FormatJSON, payload{"hr", 1}))
	assert.Contains(t, buf.String(), "\n  \"series_name\"")
}
