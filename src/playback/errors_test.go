package playback

import (
	"errors"
	"fmt"
	"testing"
)

func TestMediaErrorCodeDefaults(t *testing.T) {
	cases := []struct {
		category MediaErrorCategory
		base     int
	}{
		{CategoryGeneric, CodeMediaGeneric},
		{CategoryNetwork, CodeMediaNetwork},
		{CategoryDecode, CodeMediaDecode},
		{CategoryNotFound, CodeMediaNotFound},
	}
	for _, c := range cases {
		err := NewMediaError(c.category, 0, "boom")
		if err.Code != c.base {
			t.Errorf("%s: got code %d, want %d", c.category, err.Code, c.base)
		}
	}

	// An explicit code is preserved for diagnostics.
	err := NewMediaError(CategoryNetwork, 220001, "http 404")
	if err.Code != 220001 {
		t.Errorf("Explicit code overridden: got %d", err.Code)
	}
}

func TestMediaErrorRetryable(t *testing.T) {
	if !NewMediaError(CategoryNetwork, 0, "").Retryable() {
		t.Errorf("Network error not retryable")
	}
	if !NewMediaError(CategoryDecode, 0, "").Retryable() {
		t.Errorf("Decode error not retryable")
	}
	if NewMediaError(CategoryNotFound, 0, "").Retryable() {
		t.Errorf("Not-found error retryable")
	}
	if NewMediaError(CategoryGeneric, 0, "").Retryable() {
		t.Errorf("Generic error retryable")
	}
}

func TestMessageKeyOf(t *testing.T) {
	cases := []struct {
		err error
		key string
	}{
		{NewMediaError(CategoryNotFound, 0, ""), "errorCantLoadPlayer"},
		{&SourceError{ItemID: "x"}, "errorPlaylistItem"},
		{&SetupError{Provider: "local"}, "errorCantLoadPlayer"},
		{&AdError{Tag: "t"}, "errorAd"},
		{errors.New("opaque"), "errorCantPlayVideo"},
	}
	for _, c := range cases {
		if got := MessageKeyOf(c.err); got != c.key {
			t.Errorf("MessageKeyOf(%v): got %q, want %q", c.err, got, c.key)
		}
	}

	// Wrapped errors keep their key.
	wrapped := fmt.Errorf("while loading: %w", &SourceError{ItemID: "x"})
	if got := MessageKeyOf(wrapped); got != "errorPlaylistItem" {
		t.Errorf("Wrapped error key: got %q", got)
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(NewMediaError(CategoryDecode, 0, "")); got != CodeMediaDecode {
		t.Errorf("MediaError code: got %d", got)
	}
	if got := CodeOf(&SetupError{Provider: "local", Err: errors.New("x")}); got != CodeSetup {
		t.Errorf("SetupError code: got %d", got)
	}
	if got := CodeOf(errors.New("opaque")); got != CodeMediaGeneric {
		t.Errorf("Opaque error code: got %d", got)
	}
}
