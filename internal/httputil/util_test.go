package httputil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-sod/weld/pkg/geom"
)

func TestDecodeErr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		body     string
		target   interface{}
		expected int
	}{
		{name: "malformed", body: `{"entity":`, target: &struct{}{}, expected: http.StatusBadRequest},
		{name: "syntax", body: `{"entity" 1}`, target: &struct{}{}, expected: http.StatusBadRequest},
		{name: "empty", body: ``, target: &struct{}{}, expected: http.StatusBadRequest},
		{name: "type", body: `{"entity": 1}`, target: &struct {
			Entity string `json:"entity"`
		}{}, expected: http.StatusBadRequest},
		{name: "dimension", body: `[1, 2]`, target: &geom.Vec3{}, expected: http.StatusBadRequest},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			err := json.NewDecoder(strings.NewReader(test.body)).Decode(test.target)
			if err == nil {
				t.Fatalf("decode must fail")
			}
			w := httptest.NewRecorder()
			DecodeErr(context.Background(), w, err)
			if w.Code != test.expected {
				t.Errorf("status code, got: %v, expected: %v", w.Code, test.expected)
			}
		})
	}
}

func TestCheckJSONRequest(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		method      string
		contentType string
		expected    int
		ok          bool
	}{
		{name: "ok", method: http.MethodPost, contentType: "application/json; charset=utf-8", ok: true},
		{name: "method", method: http.MethodGet, contentType: "application/json", expected: http.StatusMethodNotAllowed},
		{name: "content_type", method: http.MethodPost, contentType: "text/plain", expected: http.StatusUnsupportedMediaType},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(test.method, "/", nil)
			r.Header.Set("Content-Type", test.contentType)
			w := httptest.NewRecorder()
			if ok := CheckJSONRequest(context.Background(), w, r, http.MethodPost); ok != test.ok {
				t.Fatalf("check result, got: %v, expected: %v", ok, test.ok)
			}
			if !test.ok && w.Code != test.expected {
				t.Errorf("status code, got: %v, expected: %v", w.Code, test.expected)
			}
		})
	}
}
