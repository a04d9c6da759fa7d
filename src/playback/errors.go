package playback

import (
	"errors"
	"fmt"
)

// MediaErrorCategory partitions the numeric error code space of escalated
// playback failures.
type MediaErrorCategory int

const (
	CategoryGeneric MediaErrorCategory = iota
	CategoryNetwork
	CategoryDecode
	CategoryNotFound
)

// Error code bases, partitioned by failure category. The exact code within a
// block is backend-specific and preserved for diagnostics; consumers should
// branch on the category or the message key.
const (
	CodeSetup         = 100000
	CodeMediaGeneric  = 200000
	CodeMediaNetwork  = 220000
	CodeMediaDecode   = 230000
	CodeMediaNotFound = 234000
)

func (c MediaErrorCategory) String() string {
	switch c {
	case CategoryNetwork:
		return "network"
	case CategoryDecode:
		return "decode"
	case CategoryNotFound:
		return "notFound"
	default:
		return "generic"
	}
}

// CodeBase returns the base of the code block assigned to the category.
func (c MediaErrorCategory) CodeBase() int {
	switch c {
	case CategoryNetwork:
		return CodeMediaNetwork
	case CategoryDecode:
		return CodeMediaDecode
	case CategoryNotFound:
		return CodeMediaNotFound
	default:
		return CodeMediaGeneric
	}
}

// A SourceError indicates that an item contains no source that any provider
// is able to play.
type SourceError struct {
	ItemID string
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("no playable source for item %q", e.ItemID)
}

// MessageKey implements the Keyed interface.
func (e *SourceError) MessageKey() string { return "errorPlaylistItem" }

// A MediaError is a backend playback failure.
type MediaError struct {
	Category MediaErrorCategory
	Code     int
	Message  string
	Err      error
}

func NewMediaError(category MediaErrorCategory, code int, message string) *MediaError {
	if code == 0 {
		code = category.CodeBase()
	}
	return &MediaError{Category: category, Code: code, Message: message}
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("media error %d (%s): %s", e.Code, e.Category, e.Message)
}

func (e *MediaError) Unwrap() error { return e.Err }

// MessageKey implements the Keyed interface.
func (e *MediaError) MessageKey() string {
	switch e.Category {
	case CategoryNetwork:
		return "errorCantPlayVideo"
	case CategoryDecode:
		return "errorBadConnection"
	case CategoryNotFound:
		return "errorCantLoadPlayer"
	default:
		return "errorCantPlayVideo"
	}
}

// Retryable reports whether the failure may be transient and worth an
// internal reload before escalation.
func (e *MediaError) Retryable() bool {
	return e.Category == CategoryNetwork || e.Category == CategoryDecode
}

// A SetupError indicates that a provider could not be constructed for an
// item.
type SetupError struct {
	Provider string
	Err      error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup of provider %q failed: %v", e.Provider, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// MessageKey implements the Keyed interface.
func (e *SetupError) MessageKey() string { return "errorCantLoadPlayer" }

// An AdError is a failure of a single instream pod item. It never
// propagates as a fatal content error.
type AdError struct {
	Tag string
	Err error
}

func (e *AdError) Error() string {
	return fmt.Sprintf("ad error for %q: %v", e.Tag, e.Err)
}

func (e *AdError) Unwrap() error { return e.Err }

// MessageKey implements the Keyed interface.
func (e *AdError) MessageKey() string { return "errorAd" }

// Autoplay failures. Neither is fatal; they toggle a UI affordance instead.
var (
	// ErrAutoplayDisabled is returned when the environment disallows
	// automatic playback altogether.
	ErrAutoplayDisabled = errors.New("autoplay disallowed")

	// ErrAutoplayTimeout is returned when the capability probe did not
	// produce a verdict in time. Distinguishable from ErrAutoplayDisabled so
	// that the caller may retry once instead of permanently giving up.
	ErrAutoplayTimeout = errors.New("autoplay probe timed out")
)

// Keyed is implemented by errors that carry a user-facing message key. The
// UI reads the key, never the internal code.
type Keyed interface {
	MessageKey() string
}

// MessageKeyOf resolves the message key for any error of the taxonomy.
func MessageKeyOf(err error) string {
	var keyed Keyed
	if errors.As(err, &keyed) {
		return keyed.MessageKey()
	}
	return "errorCantPlayVideo"
}

// CodeOf resolves the diagnostic code for any error of the taxonomy.
func CodeOf(err error) int {
	var mediaErr *MediaError
	if errors.As(err, &mediaErr) {
		return mediaErr.Code
	}
	var setupErr *SetupError
	if errors.As(err, &setupErr) {
		return CodeSetup
	}
	return CodeMediaGeneric
}
