package eventsource

import (
	"bufio"
	"net"
	"testing"
	"time"
)

func readFrame(t *testing.T, r *bufio.Reader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("Read frame: %v", err)
		}
		if line == "\n" {
			return lines
		}
		lines = append(lines, line[:len(line)-1])
	}
}

func TestEventFraming(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	client.SetReadDeadline(time.Now().Add(2 * time.Second))

	s := &Stream{conn: server}
	go func() {
		s.EventJSON("volume", map[string]interface{}{"volume": 0.5})
		s.Event("idle", "")
		s.Ping()
	}()

	r := bufio.NewReader(client)
	frame := readFrame(t, r)
	want := []string{"id: 1", "event: volume", `data: {"volume":0.5}`}
	if len(frame) != len(want) {
		t.Fatalf("Frame: %q", frame)
	}
	for i := range want {
		if frame[i] != want[i] {
			t.Errorf("Frame line %d: got %q, want %q", i, frame[i], want[i])
		}
	}

	frame = readFrame(t, r)
	if len(frame) != 2 || frame[0] != "id: 2" || frame[1] != "event: idle" {
		t.Errorf("Bodyless frame: %q", frame)
	}

	frame = readFrame(t, r)
	if len(frame) != 1 || frame[0] != ": ping" {
		t.Errorf("Ping frame: %q", frame)
	}
}
