package api

import (
	"encoding/json"
	"net/http"
	"time"

	"playbox/src/engine"
	"playbox/src/playback"
	"playbox/src/playlist"
)

// API contains the state that is accessible over the REST API.
type API struct {
	engine *engine.Engine
}

func (api *API) playerStatus(w http.ResponseWriter, r *http.Request) {
	model := api.engine.Model()
	status := map[string]interface{}{
		"state":      model.State(),
		"current":    model.PlaylistIndex(),
		"volume":     float32(model.Volume()) / 100.0,
		"mute":       model.Mute(),
		"repeat":     model.Repeat(),
		"rate":       model.PlaybackRate(),
		"castactive": model.CastActive(),
	}
	if active := api.engine.Program().ActiveController(); active != nil {
		status["item"] = active.Item()
		status["time"] = int(active.Position() / time.Second)
		status["duration"] = int(active.Duration() / time.Second)
	}
	json.NewEncoder(w).Encode(status)
}

func (api *API) playerPlay(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Reason string `json:"reason"`
	}
	defer r.Body.Close()
	json.NewDecoder(r.Body).Decode(&data)

	if err := api.engine.Play(r.Context(), playback.Reason(data.Reason)); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playerPause(w http.ResponseWriter, r *http.Request) {
	api.engine.Pause(playback.ReasonInteraction)
	w.Write([]byte("{}"))
}

func (api *API) playerStop(w http.ResponseWriter, r *http.Request) {
	api.engine.Stop()
	w.Write([]byte("{}"))
}

func (api *API) playerNext(w http.ResponseWriter, r *http.Request) {
	if err := api.engine.Next(r.Context()); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playerSetCurrent(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Current int `json:"current"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := api.engine.PlaylistItem(r.Context(), data.Current); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playerGetTime(w http.ResponseWriter, r *http.Request) {
	active := api.engine.Program().ActiveController()
	if active == nil {
		json.NewEncoder(w).Encode(map[string]interface{}{"time": 0})
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"time": int(active.Position() / time.Second),
	})
}

func (api *API) playerSetTime(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Time float64 `json:"time"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	api.engine.Seek(time.Duration(data.Time*float64(time.Second)), playback.ReasonInteraction)
	w.Write([]byte("{}"))
}

func (api *API) playerGetVolume(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"volume": float32(api.engine.Model().Volume()) / 100.0,
	})
}

func (api *API) playerSetVolume(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Volume float32 `json:"volume"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	api.engine.SetVolume(int(data.Volume * 100))
	w.Write([]byte("{}"))
}

func (api *API) playerSetMute(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Mute bool `json:"mute"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	api.engine.SetMute(data.Mute)
	w.Write([]byte("{}"))
}

func (api *API) playerSetRate(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Rate float64 `json:"rate"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	api.engine.SetPlaybackRate(data.Rate)
	w.Write([]byte("{}"))
}

func (api *API) playerSetRepeat(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Repeat bool `json:"repeat"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	api.engine.SetRepeat(data.Repeat)
	w.Write([]byte("{}"))
}

func (api *API) playerSetFullscreen(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Fullscreen bool `json:"fullscreen"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	api.engine.SetFullscreen(data.Fullscreen)
	w.Write([]byte("{}"))
}

func (api *API) playerSetViewable(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Ratio float64 `json:"ratio"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	api.engine.SetViewable(data.Ratio)
	w.Write([]byte("{}"))
}

func (api *API) playerGetQuality(w http.ResponseWriter, r *http.Request) {
	var levels []playback.QualityLevel
	if active := api.engine.Program().ActiveController(); active != nil {
		levels = active.Provider().QualityLevels()
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"levels": levels,
	})
}

func (api *API) playerSetQuality(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Index int `json:"index"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := api.engine.SetCurrentQuality(data.Index); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playerGetAudioTrack(w http.ResponseWriter, r *http.Request) {
	var tracks []playback.AudioTrack
	if active := api.engine.Program().ActiveController(); active != nil {
		tracks = active.Provider().AudioTracks()
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"tracks": tracks,
	})
}

func (api *API) playerSetAudioTrack(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Index int `json:"index"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := api.engine.SetCurrentAudioTrack(data.Index); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playerGetCaptions(w http.ResponseWriter, r *http.Request) {
	tracks, current := api.engine.CaptionTracks()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"tracks":  tracks,
		"current": current,
	})
}

func (api *API) playerSetCaptions(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Index int `json:"index"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := api.engine.SetCurrentCaptions(data.Index); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playerSetCast(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Active bool `json:"active"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := api.engine.Cast(r.Context(), data.Active); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playerSkipAd(w http.ResponseWriter, r *http.Request) {
	if err := api.engine.SkipAd(r.Context()); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playlistContents(w http.ResponseWriter, r *http.Request) {
	feed := api.engine.Feed()
	if feed == nil {
		feed = &playlist.Feed{}
	}
	json.NewEncoder(w).Encode(feed)
}

func (api *API) playlistLoad(w http.ResponseWriter, r *http.Request) {
	var feed playlist.Feed
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&feed); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := api.engine.Load(r.Context(), &feed); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}
