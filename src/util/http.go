package util

import (
	"bufio"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// LogHandler provides middleware that logs each request with its response
// code and handling time using logrus.
func LogHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		entry := log.WithFields(log.Fields{
			"status":  sw.status,
			"elapsed": time.Since(start).Round(time.Millisecond),
		})
		switch {
		case sw.hijacked:
			// The player event stream takes over its connection. The
			// elapsed time then covers the whole stream.
			entry.Debugf("%s %s stream closed", r.Method, r.URL.Path)
		case sw.status >= 500:
			entry.Errorf("%s %s", r.Method, r.URL.Path)
		case sw.status >= 400:
			entry.Warnf("%s %s", r.Method, r.URL.Path)
		default:
			entry.Debugf("%s %s", r.Method, r.URL.Path)
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status   int
	hijacked bool
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	return sw.ResponseWriter.Write(b)
}

func (sw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	sw.hijacked = true
	return sw.ResponseWriter.(http.Hijacker).Hijack()
}
