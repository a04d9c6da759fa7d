package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"playbox/src/engine"
	"playbox/src/playback"
)

// InitRouter attaches all API routes to the specified router.
func InitRouter(r chi.Router, engine *engine.Engine) {
	api := API{engine: engine}
	r.Route("/player", func(r chi.Router) {
		r.Use(jsonCtx)
		r.Get("/", api.playerStatus)
		r.Post("/play", api.playerPlay)
		r.Post("/pause", api.playerPause)
		r.Post("/stop", api.playerStop)
		r.Post("/next", api.playerNext)
		r.Post("/current", api.playerSetCurrent)
		r.Get("/time", api.playerGetTime)
		r.Post("/time", api.playerSetTime)
		r.Get("/volume", api.playerGetVolume)
		r.Post("/volume", api.playerSetVolume)
		r.Post("/mute", api.playerSetMute)
		r.Post("/rate", api.playerSetRate)
		r.Post("/repeat", api.playerSetRepeat)
		r.Post("/fullscreen", api.playerSetFullscreen)
		r.Post("/viewable", api.playerSetViewable)
		r.Get("/quality", api.playerGetQuality)
		r.Post("/quality", api.playerSetQuality)
		r.Get("/audiotrack", api.playerGetAudioTrack)
		r.Post("/audiotrack", api.playerSetAudioTrack)
		r.Get("/captions", api.playerGetCaptions)
		r.Post("/captions", api.playerSetCaptions)
		r.Post("/skipad", api.playerSkipAd)
		r.Post("/cast", api.playerSetCast)
		r.Get("/playlist", api.playlistContents)
		r.Put("/playlist", api.playlistLoad)
		r.Get("/events", api.playerEvents)
	})
}

// WriteError writes an error to the client or an empty object if err is nil.
//
// Errors from the playback taxonomy keep their numeric code for diagnostics
// and carry a message key for the client to map to user-facing text.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	log.Errorf("Error serving %s: %v", r.RemoteAddr, err)
	w.WriteHeader(http.StatusBadRequest)

	if r.Header.Get("X-Requested-With") == "" {
		w.Write([]byte(err.Error()))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
		"key":   playback.MessageKeyOf(err),
		"code":  playback.CodeOf(err),
	})
}

func jsonCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
