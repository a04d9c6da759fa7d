package playback

import (
	"math"
	"time"
)

// Numeric time conventions:
//
//   - A duration of +Inf denotes a live stream without a seekable DVR window.
//   - A negative duration denotes a DVR live stream. Positions on such
//     streams are offsets behind the live edge: 0 is the live edge, negative
//     values lie behind it.
//   - Anything else is plain on-demand media.
//
// Internally, positions on DVR streams are absolute offsets within the
// seekable window. The conversion to and from the behind-live convention
// happens at the provider boundary only.

const (
	// LiveDuration marks a live stream without DVR.
	LiveDuration = time.Duration(math.MaxInt64)

	// SeekEndPadding keeps seeks this far away from the very end of the
	// media so that the backend does not immediately fire a completion.
	SeekEndPadding = 250 * time.Millisecond
)

// LiveConfig holds the empirically tuned live edge thresholds. The defaults
// mirror the behavior of common web playback stacks; deployments may widen
// them for high-latency sources.
type LiveConfig struct {
	// EdgeTolerance is the distance from the live edge within which a
	// position is still reported as on-edge.
	EdgeTolerance time.Duration

	// MinDVRWindow is the minimum seekable window length for a live stream
	// to be treated as DVR at all.
	MinDVRWindow time.Duration
}

// DefaultLiveConfig returns the stock thresholds.
func DefaultLiveConfig() LiveConfig {
	return LiveConfig{
		EdgeTolerance: time.Second,
		MinDVRWindow:  2 * time.Second,
	}
}

// A SeekRange is the window of the media that is seekable.
type SeekRange struct {
	Start time.Duration
	End   time.Duration
}

func (r SeekRange) Window() time.Duration {
	return r.End - r.Start
}

// IsLive reports whether the duration denotes a live stream without DVR.
func IsLive(duration time.Duration) bool {
	return duration == LiveDuration
}

// IsDVR reports whether the duration denotes a DVR live stream. A duration
// of +Inf is never DVR.
func IsDVR(duration time.Duration, cfg LiveConfig) bool {
	return duration < 0 && -duration >= cfg.MinDVRWindow
}

// BehindLive converts an absolute position within the seekable window into
// an offset behind the live edge (0 = live edge, negative = behind).
func BehindLive(absolute time.Duration, r SeekRange) time.Duration {
	return absolute - r.End
}

// FromBehindLive converts a behind-live offset back into an absolute
// position within the seekable window.
func FromBehindLive(offset time.Duration, r SeekRange) time.Duration {
	return r.End + offset
}

// AtLiveEdge reports whether a behind-live offset counts as being at the
// live edge.
func AtLiveEdge(offset time.Duration, cfg LiveConfig) bool {
	return offset >= -cfg.EdgeTolerance
}

// ClampSeek clamps a seek target to the seekable bounds of the media.
//
// On-demand positions are clamped to [0, duration-SeekEndPadding]. DVR
// positions are behind-live offsets clamped to [-window, 0]. Seeking a
// non-DVR live stream always resolves to the live edge.
func ClampSeek(target, duration time.Duration, r SeekRange, cfg LiveConfig) time.Duration {
	switch {
	case IsLive(duration):
		return 0
	case IsDVR(duration, cfg):
		if window := -duration; target < -window {
			target = -window
		}
		if target > 0 {
			target = 0
		}
		return target
	default:
		if max := duration - SeekEndPadding; target > max {
			target = max
		}
		if target < 0 {
			target = 0
		}
		return target
	}
}
