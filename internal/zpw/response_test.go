package zpw

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func httpResponse(code int, body string) *http.Response {
	return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader(body))}
}

func encryptedEnvelope(t *testing.T, innerCode int, innerMsg string, data any) string {
	t.Helper()
	inner, err := json.Marshal(map[string]any{"error_code": innerCode, "error_message": innerMsg, "data": data})
	if err != nil {
		t.Fatal(err)
	}
	enc, err := AESCBC{}.Encrypt(testKey(), string(inner))
	if err != nil {
		t.Fatal(err)
	}
	outer, _ := json.Marshal(map[string]any{"error_code": 0, "error_message": "", "data": enc})
	return string(outer)
}

func TestEnvelopeResolverSuccess(t *testing.T) {
	r := NewEnvelopeResolver(testKey(), AESCBC{})
	var out UndoResponse
	if err := r.Resolve(httpResponse(200, encryptedEnvelope(t, 0, "", map[string]int{"status": 3})), &out); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out.Status != 3 {
		t.Errorf("status = %d, want 3", out.Status)
	}
}

func TestEnvelopeResolverErrors(t *testing.T) {
	tests := []struct {
		name     string
		resp     *http.Response
		wantCode int
		wantMsg  string
	}{
		{"http failure", httpResponse(502, "bad gateway"), 0, "status code 502"},
		{"outer error code", httpResponse(200, `{"error_code":114,"error_message":"invalid params"}`), 114, "invalid params"},
		{"inner error code", httpResponse(200, encryptedEnvelope(t, 1001, "message too old", nil)), 1001, "message too old"},
		{"not json", httpResponse(200, "<html>"), 0, "decode response"},
		{"data not a string", httpResponse(200, `{"error_code":0,"data":{"status":0}}`), 0, "not an encrypted string"},
		{"data not decryptable", httpResponse(200, `{"error_code":0,"data":"AAAA"}`), 0, "decrypt response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewEnvelopeResolver(testKey(), AESCBC{})
			var out UndoResponse
			err := r.Resolve(tt.resp, &out)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v (%T), want *APIError", err, err)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", apiErr.Code, tt.wantCode)
			}
			if !strings.Contains(apiErr.Message, tt.wantMsg) {
				t.Errorf("message = %q, want it to contain %q", apiErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestEnvelopeResolverEmptyResponse(t *testing.T) {
	r := NewEnvelopeResolver(testKey(), AESCBC{})
	for _, resp := range []*http.Response{nil, {StatusCode: 200}} {
		var apiErr *APIError
		if err := r.Resolve(resp, &UndoResponse{}); !errors.As(err, &apiErr) {
			t.Errorf("Resolve(%v) error = %v (%T), want *APIError", resp, err, err)
		}
	}
}

func TestEnvelopeResolverPlain(t *testing.T) {
	r := &EnvelopeResolver{}
	var out UndoResponse
	if err := r.Resolve(httpResponse(200, `{"error_code":0,"data":{"status":7}}`), &out); err != nil {
		t.Fatal(err)
	}
	if out.Status != 7 {
		t.Errorf("status = %d, want 7", out.Status)
	}
}

func TestAPIErrorString(t *testing.T) {
	if got := (&APIError{Message: "boom"}).Error(); got != "boom" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&APIError{Code: 5, Message: "boom"}).Error(); got != "boom (code 5)" {
		t.Errorf("Error() = %q", got)
	}
}
