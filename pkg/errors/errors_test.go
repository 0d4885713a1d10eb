package errors

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error explicit", New(ErrServiceUnavailable, http.StatusServiceUnavailable, "model not loaded"), http.StatusServiceUnavailable},
		{"data error", Data("dataset is empty"), http.StatusBadRequest},
		{"wrapped invalid input", fmt.Errorf("decode: %w", ErrInvalidInput), http.StatusBadRequest},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCorruptIsIO(t *testing.T) {
	err := Corrupt("bad magic %q", "XXXX")
	if !errors.Is(err, ErrArtifactCorrupt) {
		t.Fatal("expected ErrArtifactCorrupt")
	}
	if !errors.Is(err, ErrIO) {
		t.Fatal("corrupt artifact should classify as ErrIO")
	}
}

func TestIOKeepsCause(t *testing.T) {
	err := IO(os.ErrNotExist, "reading %s", "model.snta")
	if !errors.Is(err, ErrIO) {
		t.Error("expected ErrIO")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("expected os.ErrNotExist to stay reachable")
	}
}
