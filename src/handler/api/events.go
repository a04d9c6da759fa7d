package api

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"playbox/src/engine"
	"playbox/src/playback"
	"playbox/src/util/eventsource"
)

func (api *API) playerEvents(w http.ResponseWriter, r *http.Request) {
	es, err := eventsource.Begin(w, r)
	if err != nil {
		log.Errorf("%v", err)
		return
	}
	emitter := api.engine.Events()
	listener := emitter.Listen()
	defer emitter.Unlisten(listener)

	// Snapshot for late joiners.
	model := api.engine.Model()
	es.EventJSON("state", map[string]interface{}{"state": model.State()})
	es.EventJSON("volume", map[string]interface{}{"volume": float32(model.Volume()) / 100.0})
	es.EventJSON("mute", map[string]interface{}{"mute": model.Mute()})
	if active := api.engine.Program().ActiveController(); active != nil {
		es.EventJSON("playlistItem", map[string]interface{}{
			"index": model.PlaylistIndex(),
			"item":  active.Item(),
		})
	}

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		var event interface{}
		select {
		case event = <-listener:
		case <-keepalive.C:
			es.Ping()
			continue
		case <-r.Context().Done():
			return
		}

		switch t := event.(type) {
		case engine.PlayEvent:
			es.EventJSON("play", map[string]interface{}{"reason": t.Reason})
		case engine.PauseEvent:
			es.EventJSON("pause", map[string]interface{}{"reason": t.Reason})
		case engine.BufferingEvent:
			es.Event("buffer", "{}")
		case engine.IdleEvent:
			es.Event("idle", "{}")
		case engine.PlaylistItemEvent:
			es.EventJSON("playlistItem", map[string]interface{}{
				"index": t.Index,
				"item":  t.Item,
			})
		case engine.PlaylistCompleteEvent:
			es.Event("playlistComplete", "{}")
		case engine.FullscreenEvent:
			es.EventJSON("fullscreen", map[string]interface{}{"fullscreen": t.Fullscreen})
		case engine.CastEvent:
			es.EventJSON("cast", map[string]interface{}{"active": t.Active})
		case engine.AutostartFailedEvent:
			es.Event("autostartNotAllowed", "{}")
		case engine.CaptionsListEvent:
			es.EventJSON("captionsList", map[string]interface{}{
				"tracks":  t.Tracks,
				"current": t.Current,
			})
		case engine.CaptionsChangedEvent:
			es.EventJSON("captionsChanged", map[string]interface{}{"track": t.Current})
		case engine.CaptionCueEvent:
			es.EventJSON("captionsCue", t.Cue)
		case playback.TimeEvent:
			es.EventJSON("time", map[string]interface{}{
				"time":     t.Position.Seconds(),
				"duration": jsonDuration(t.Duration),
			})
		case playback.BufferEvent:
			es.EventJSON("bufferChange", map[string]interface{}{"percent": t.Percent})
		case playback.SeekEvent:
			es.EventJSON("seek", map[string]interface{}{
				"position": t.Position.Seconds(),
				"offset":   t.Offset.Seconds(),
				"reason":   t.Reason,
			})
		case playback.SeekedEvent:
			es.Event("seeked", "{}")
		case playback.LevelsEvent:
			es.EventJSON("levels", map[string]interface{}{
				"levels":  t.Levels,
				"current": t.Current,
			})
		case playback.AudioTracksEvent:
			es.EventJSON("audioTracks", map[string]interface{}{
				"tracks":  t.Tracks,
				"current": t.Current,
			})
		case playback.RateChangeEvent:
			es.EventJSON("ratechange", map[string]interface{}{"rate": t.Rate})
		case playback.VolumeEvent:
			es.EventJSON("volume", map[string]interface{}{"volume": float32(t.Volume) / 100.0})
		case playback.MuteEvent:
			es.EventJSON("mute", map[string]interface{}{"mute": t.Mute})
		case playback.CompleteEvent:
			es.Event("complete", "{}")
		case playback.ErrorEvent:
			es.EventJSON("error", map[string]interface{}{
				"code":    t.Code,
				"message": t.Message,
			})
		}
	}
}

// jsonDuration maps the live-stream marker to -1 and DVR offsets to their
// negative second count, mirroring the numeric convention of the event
// vocabulary.
func jsonDuration(d time.Duration) float64 {
	if d == playback.LiveDuration {
		return -1
	}
	return d.Seconds()
}
