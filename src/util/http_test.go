package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLogHandlerPassthrough(t *testing.T) {
	handler := LogHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("Status: %d", rec.Code)
	}
	if rec.Body.String() != "short and stout" {
		t.Errorf("Body: %q", rec.Body.String())
	}
}

func TestLogHandlerImplicitOK(t *testing.T) {
	handler := LogHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Status: %d", rec.Code)
	}
}
