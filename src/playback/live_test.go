package playback

import (
	"testing"
	"time"
)

func TestIsLive(t *testing.T) {
	if !IsLive(LiveDuration) {
		t.Errorf("LiveDuration not recognized as live")
	}
	if IsLive(time.Hour) || IsLive(-time.Hour) {
		t.Errorf("Finite duration recognized as live")
	}
}

func TestIsDVR(t *testing.T) {
	cfg := DefaultLiveConfig()
	if !IsDVR(-time.Minute, cfg) {
		t.Errorf("One minute window not recognized as DVR")
	}
	if IsDVR(-time.Second, cfg) {
		t.Errorf("Window below the minimum recognized as DVR")
	}
	if IsDVR(time.Minute, cfg) {
		t.Errorf("On-demand duration recognized as DVR")
	}
	if IsDVR(LiveDuration, cfg) {
		t.Errorf("Live duration recognized as DVR")
	}
}

func TestBehindLiveRoundtrip(t *testing.T) {
	r := SeekRange{Start: 10 * time.Second, End: 70 * time.Second}

	offset := BehindLive(40*time.Second, r)
	if offset != -30*time.Second {
		t.Fatalf("BehindLive: got %v, want -30s", offset)
	}
	if abs := FromBehindLive(offset, r); abs != 40*time.Second {
		t.Fatalf("FromBehindLive: got %v, want 40s", abs)
	}
	if edge := BehindLive(r.End, r); edge != 0 {
		t.Fatalf("Live edge offset: got %v, want 0", edge)
	}
}

func TestAtLiveEdge(t *testing.T) {
	cfg := DefaultLiveConfig()
	if !AtLiveEdge(0, cfg) {
		t.Errorf("Offset 0 not at edge")
	}
	if !AtLiveEdge(-500*time.Millisecond, cfg) {
		t.Errorf("Offset within tolerance not at edge")
	}
	if AtLiveEdge(-2*time.Second, cfg) {
		t.Errorf("Offset beyond tolerance reported at edge")
	}
}

func TestClampSeekOnDemand(t *testing.T) {
	cfg := DefaultLiveConfig()
	duration := 120 * time.Second
	r := SeekRange{End: duration}

	if got := ClampSeek(60*time.Second, duration, r, cfg); got != 60*time.Second {
		t.Errorf("In-range seek altered: got %v", got)
	}
	if got := ClampSeek(-5*time.Second, duration, r, cfg); got != 0 {
		t.Errorf("Negative seek: got %v, want 0", got)
	}
	// Seeks past the end stop short of it so the media does not instantly
	// complete.
	want := duration - SeekEndPadding
	if got := ClampSeek(130*time.Second, duration, r, cfg); got != want {
		t.Errorf("Past-end seek: got %v, want %v", got, want)
	}
}

func TestClampSeekDVR(t *testing.T) {
	cfg := DefaultLiveConfig()
	duration := -60 * time.Second
	r := SeekRange{End: 60 * time.Second}

	if got := ClampSeek(-30*time.Second, duration, r, cfg); got != -30*time.Second {
		t.Errorf("In-window seek altered: got %v", got)
	}
	if got := ClampSeek(-90*time.Second, duration, r, cfg); got != -60*time.Second {
		t.Errorf("Behind-window seek: got %v, want -60s", got)
	}
	if got := ClampSeek(10*time.Second, duration, r, cfg); got != 0 {
		t.Errorf("Ahead-of-edge seek: got %v, want 0", got)
	}
}

func TestClampSeekLive(t *testing.T) {
	cfg := DefaultLiveConfig()
	if got := ClampSeek(-30*time.Second, LiveDuration, SeekRange{}, cfg); got != 0 {
		t.Errorf("Seek on non-DVR live stream: got %v, want 0", got)
	}
}
