package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"playbox/src/engine"
	"playbox/src/handler/web"
	"playbox/src/model"
	"playbox/src/playback"
	"playbox/src/playback/element"
	"playbox/src/playback/provider/local"
	"playbox/src/playback/provider/mpdcast"
	"playbox/src/playlist"
	"playbox/src/util"
)

const confFile = "config.yaml"

var (
	build       = "%BUILD%"
	version     = "%VERSION%"
	versionDate = "%VERSION_DATE%"
)

type config struct {
	Address string `yaml:"bind"`
	URLRoot string `yaml:"url_root"`

	Autostart    string  `yaml:"autostart"`
	AutoPause    bool    `yaml:"autopause"`
	Mute         bool    `yaml:"mute"`
	Volume       int     `yaml:"volume"`
	Repeat       bool    `yaml:"repeat"`
	PlaybackRate float64 `yaml:"playback_rate"`

	SurfacePool int    `yaml:"surface_pool"`
	Playlist    string `yaml:"playlist"`
	StorageDir  string `yaml:"storage_dir"`

	Log struct {
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
	} `yaml:"log"`

	MPD *struct {
		Network  string  `yaml:"network"`
		Address  string  `yaml:"address"`
		Password *string `yaml:"password"`
	} `yaml:"mpd"`
}

func (conf *config) Validate() (errs []error) {
	if conf.Address == "" {
		errs = append(errs, fmt.Errorf("config: `bind` is required"))
	}
	if conf.Volume < 0 || conf.Volume > 100 {
		errs = append(errs, fmt.Errorf("config: `volume` must be in 0..100"))
	}
	switch engine.Autostart(conf.Autostart) {
	case "", engine.AutostartOff, engine.AutostartOn, engine.AutostartViewable:
	default:
		errs = append(errs, fmt.Errorf("config: `autostart` must be off, on or viewable"))
	}
	return
}

func loadConfig(filename string) (*config, error) {
	fd, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	d := yaml.NewDecoder(fd)
	d.KnownFields(true)
	var conf config
	if err := d.Decode(&conf); err != nil {
		return nil, err
	}

	return &conf, nil
}

func main() {
	defaultLogLevel := "warn"
	if build == "debug" {
		defaultLogLevel = "debug"
	}

	configFile := flag.String("conf", confFile, "Path to the configuration file")
	printVersion := flag.Bool("version", false, "Print version information and exit")
	logLevel := flag.String("log", defaultLogLevel, "Sets the log level. [debug, info, warn, error]")
	flag.Parse()

	if ll, err := log.ParseLevel(*logLevel); err != nil {
		log.Fatalf("Could not parse log level: %v", err)
	} else {
		log.SetLevel(ll)
	}
	log.SetReportCaller(true)

	if *printVersion {
		fmt.Printf("Version: %v (%v)\n", version, versionDate)
		fmt.Printf("Build: %v\n", build)
		return
	}

	log.Infof("Version: %v (%v)\n", version, build)
	config, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}
	if errs := config.Validate(); len(errs) > 0 {
		log.Fatalf("Could not load config: %v", errs)
	}

	if config.Log.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   config.Log.File,
			MaxSize:    config.Log.MaxSizeMB,
			MaxBackups: config.Log.MaxBackups,
		}
		log.SetOutput(io.MultiWriter(os.Stderr, rotated))
	}

	registry := playback.NewRegistry(local.NewFactory())
	poolSize := config.SurfacePool
	if poolSize <= 0 {
		poolSize = 2
	}
	pool := element.NewPool(poolSize, func() element.Surface {
		return element.NewTickingSimSurface(nil, 250*time.Millisecond)
	})

	engineConf := engine.Config{
		Autostart:    engine.Autostart(config.Autostart),
		AutoPause:    config.AutoPause,
		Mute:         config.Mute,
		Volume:       config.Volume,
		Repeat:       config.Repeat,
		PlaybackRate: config.PlaybackRate,
	}

	var settings *util.PersistentStorage
	if config.StorageDir != "" {
		storeDir, err := filepath.Abs(config.StorageDir)
		if err != nil {
			log.Fatalf("Unable to resolve absolute path of storage dir: %v", err)
		}
		if err := os.MkdirAll(storeDir, 0755); err != nil {
			log.Fatalf("Unable to create storage dir: %v", err)
		}
		saved := &playerSettings{
			Volume:       engineConf.Volume,
			Mute:         engineConf.Mute,
			Repeat:       engineConf.Repeat,
			PlaybackRate: engineConf.PlaybackRate,
		}
		settings, err = util.NewPersistentStorage(filepath.Join(storeDir, "settings.json"), saved)
		if err != nil {
			log.Fatalf("Unable to load stored settings: %v", err)
		}
		saved = settings.Value().(*playerSettings)
		engineConf.Volume = saved.Volume
		engineConf.Mute = saved.Mute
		engineConf.Repeat = saved.Repeat
		engineConf.PlaybackRate = saved.PlaybackRate
	}

	e := engine.New(engineConf, registry, pool)
	defer e.Destroy()

	if settings != nil {
		defer persistSettings(e, settings)()
	}

	if config.MPD != nil {
		mpdConf := *config.MPD
		e.SetCastConnector(func() (playback.Provider, error) {
			return mpdcast.Connect(mpdConf.Network, mpdConf.Address, mpdConf.Password)
		})
		log.Infof("MPD cast receiver configured at %v", mpdConf.Address)
	}

	if config.Playlist != "" {
		feed, err := loadFeed(config.Playlist)
		if err != nil {
			log.Fatalf("Could not load playlist: %v", err)
		}
		if err := e.Load(context.Background(), feed); err != nil {
			log.Fatalf("Could not activate playlist: %v", err)
		}
		log.Infof("Loaded playlist %q with %d items", feed.Title, len(feed.Items))
	}

	service := web.New(build, version, config.URLRoot, e)

	if build == "debug" {
		service.Get("/debug/pprof/*", pprof.Index)
	}
	log.Infof("Now accepting HTTP connections on %v", config.Address)
	server := &http.Server{
		Addr:           config.Address,
		Handler:        service,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	log.Fatalf("Error running webserver: %v", server.ListenAndServe())
}

type playerSettings struct {
	Volume       int     `json:"volume"`
	Mute         bool    `json:"mute"`
	Repeat       bool    `json:"repeat"`
	PlaybackRate float64 `json:"playback_rate"`
}

// persistSettings saves the adjustable player attributes whenever they
// change so they survive a restart.
func persistSettings(e *engine.Engine, settings *util.PersistentStorage) func() {
	watched := map[string]bool{
		model.KeyVolume:       true,
		model.KeyMute:         true,
		model.KeyRepeat:       true,
		model.KeyPlaybackRate: true,
	}
	return e.Model().OnAll(func(key string, newValue, oldValue interface{}) {
		if !watched[key] {
			return
		}
		m := e.Model()
		err := settings.Update(func(value interface{}) {
			saved := value.(*playerSettings)
			saved.Volume = m.Volume()
			saved.Mute = m.Mute()
			saved.Repeat = m.Repeat()
			saved.PlaybackRate = m.PlaybackRate()
		})
		if err != nil {
			log.Errorf("Unable to store settings: %v", err)
		}
	})
}

func loadFeed(filename string) (*playlist.Feed, error) {
	fd, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	d := yaml.NewDecoder(fd)
	d.KnownFields(true)
	var feed playlist.Feed
	if err := d.Decode(&feed); err != nil {
		return nil, err
	}
	return &feed, nil
}
