package web

import (
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"playbox/src/engine"
	"playbox/src/handler/api"
	"playbox/src/util"
)

type webUI struct {
	build, version string
	urlRoot        string
	engine         *engine.Engine
}

// New assembles the HTTP service: the REST and event API under /data, the
// Prometheus endpoint and a minimal status page.
func New(build, version, urlRoot string, engine *engine.Engine) chi.Router {
	web := webUI{
		build:   build,
		version: version,
		urlRoot: urlRoot,
		engine:  engine,
	}

	service := chi.NewRouter()
	service.Use(util.LogHandler)
	service.Use(middleware.Compress(5))

	service.Get("/", web.statusPage)
	service.Handle("/metrics", promhttp.Handler())
	service.Route("/data", func(r chi.Router) {
		api.InitRouter(r, web.engine)
	})

	return service
}

var pageTemplate = template.Must(template.New("status").Parse(`<!doctype html>
<html>
<head><title>playbox</title></head>
<body>
<h1>playbox {{.Version}}</h1>
<dl>
<dt>State</dt><dd>{{.State}}</dd>
<dt>Playlist index</dt><dd>{{.Index}}</dd>
<dt>Volume</dt><dd>{{.Volume}}</dd>
<dt>Time</dt><dd>{{.Time}}</dd>
</dl>
</body>
</html>
`))

func (web *webUI) statusPage(w http.ResponseWriter, r *http.Request) {
	model := web.engine.Model()
	params := struct {
		Version string
		State   string
		Index   int
		Volume  int
		Time    time.Time
	}{
		Version: web.version,
		State:   string(model.State()),
		Index:   model.PlaylistIndex(),
		Volume:  model.Volume(),
		Time:    time.Now(),
	}

	w.Header().Set("Content-Type", "text/html")
	if err := pageTemplate.Execute(w, params); err != nil {
		log.Errorf("Could not render status page: %v", err)
	}
}
