// Package eventsource implements the server side of the SSE stream which
// carries player events to embedding frontends.
package eventsource

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ReconnectDelayMillis is the retry hint sent to clients. Reconnecting
// frontends receive a fresh player state snapshot, so a short delay keeps
// their view from going stale.
const ReconnectDelayMillis = 2000

// Stream is a hijacked connection carrying server-sent player events. Events
// get sequential IDs so a frontend can tell a resumed stream from a fresh
// one.
type Stream struct {
	conn net.Conn
	lock sync.Mutex
	seq  int
}

// Begin takes over the connection for a player event stream. The connection
// is closed when the request context ends.
func Begin(w http.ResponseWriter, r *http.Request) (*Stream, error) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Transfer-Encoding", "identity")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	conn, buf, err := w.(http.Hijacker).Hijack()
	if err != nil {
		return nil, fmt.Errorf("could not start player event stream: %v", err)
	}
	fmt.Fprintf(buf, "retry: %d\n\n", ReconnectDelayMillis)
	buf.Flush()

	go func() {
		<-r.Context().Done()
		conn.Close()
	}()

	return &Stream{conn: conn}, nil
}

// Event writes a named event. The media controllers emit from their own
// goroutines, so writes are serialized.
func (s *Stream) Event(event, body string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.seq++
	fmt.Fprintf(s.conn, "id: %d\nevent: %s\n", s.seq, event)
	if body != "" {
		fmt.Fprintf(s.conn, "data: %s\n", body)
	}
	fmt.Fprint(s.conn, "\n")
}

func (s *Stream) EventJSON(event string, body interface{}) {
	b, err := json.Marshal(body)
	if err != nil {
		log.Errorf("Could not marshal player event %q: %v", event, err)
		return
	}
	s.Event(event, string(b))
}

// Ping writes an SSE comment so proxies do not drop a stream that is quiet
// because playback is idle.
func (s *Stream) Ping() {
	s.lock.Lock()
	defer s.lock.Unlock()
	fmt.Fprint(s.conn, ": ping\n\n")
}
