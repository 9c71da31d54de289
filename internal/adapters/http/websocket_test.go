package http_test

import (
	"encoding/json"
	"net"
	"net/url"
	"strings"
	"testing"
	"time"

	fastws "github.com/fasthttp/websocket"

	"github.com/samirrijal/polysync/internal/core/domain"
)

type wsFrame struct {
	Type  string               `json:"type"`
	Frame *domain.OverlayFrame `json:"frame"`
	Error string               `json:"error"`
}

// readUntil reads messages until match returns true or the deadline passes.
func readUntil(t *testing.T, conn *fastws.Conn, match func(wsFrame) bool) wsFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var m wsFrame
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		if match(m) {
			return m
		}
	}
}

func send(t *testing.T, conn *fastws.Conn, v interface{}) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestEditorWebSocket_EditRoundTrip(t *testing.T) {
	deps := makeDeps(t)
	app := setupApp(deps)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { _ = app.Shutdown() })

	s := deps.Sessions.Create()
	conn, _, err := fastws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/sessions/"+s.ID(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Initial frame carries the seeded path.
	first := readUntil(t, conn, func(m wsFrame) bool { return m.Type == "frame" })
	if first.Frame.Version != 0 || first.Frame.Editable.Path.Len() != 3 {
		t.Fatalf("unexpected initial frame %+v", first.Frame)
	}
	if len(first.Frame.References) != 2 {
		t.Errorf("expected 2 references, got %d", len(first.Frame.References))
	}

	send(t, conn, map[string]interface{}{"type": "attach", "path": initialPath.Vertices()})
	moved := domain.Vertex{Lat: 40.75, Lng: -73.97}
	send(t, conn, map[string]interface{}{"type": "set_at", "index": 1, "vertex": moved})

	got := readUntil(t, conn, func(m wsFrame) bool { return m.Type == "frame" && m.Frame.Version >= 1 })
	if got.Frame.Editable.Path.At(1) != moved {
		t.Errorf("expected moved vertex, got %v", got.Frame.Editable.Path.Vertices())
	}
	if s.Path().At(1) != moved {
		t.Errorf("session path not updated: %v", s.Path().Vertices())
	}

	send(t, conn, map[string]interface{}{"type": "remove_at", "index": 0})
	got = readUntil(t, conn, func(m wsFrame) bool { return m.Type == "frame" && m.Frame.Version >= 2 })
	if n := got.Frame.Editable.Path.Len(); n != 2 {
		t.Errorf("expected 2 vertices after removal, got %d", n)
	}

	send(t, conn, map[string]interface{}{"type": "detach"})
	// A mutation without geometry is reported, not applied.
	send(t, conn, map[string]interface{}{"type": "set_at", "index": 0, "vertex": moved})
	errMsg := readUntil(t, conn, func(m wsFrame) bool { return m.Type == "error" })
	if errMsg.Error == "" {
		t.Error("expected error text")
	}
	if v := s.Snapshot().Version; v != 2 {
		t.Errorf("expected version to stay at 2, got %d", v)
	}
}

func TestEditorWebSocket_UnknownSession(t *testing.T) {
	app := setupApp(makeDeps(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { _ = app.Shutdown() })

	conn, _, err := fastws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/sessions/missing", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	m := readUntil(t, conn, func(m wsFrame) bool { return true })
	if m.Type != "error" {
		t.Errorf("expected error message, got %s", m.Type)
	}
}

func TestEditorWebSocket_AttachRejectsInvalidVertex(t *testing.T) {
	deps := makeDeps(t)
	app := setupApp(deps)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { _ = app.Shutdown() })

	s := deps.Sessions.Create()
	conn, _, err := fastws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/sessions/"+s.ID(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readUntil(t, conn, func(m wsFrame) bool { return m.Type == "frame" })

	bad := []domain.Vertex{{Lat: 500, Lng: 0}, {Lat: 40.63, Lng: -73.97}, {Lat: 40.62, Lng: -73.98}}
	send(t, conn, map[string]interface{}{"type": "attach", "path": bad})
	errMsg := readUntil(t, conn, func(m wsFrame) bool { return m.Type == "error" })
	if !strings.Contains(errMsg.Error, "invalid vertex") {
		t.Errorf("expected invalid vertex error, got %q", errMsg.Error)
	}

	// Nothing was attached, so a release cannot copy the vertex in.
	send(t, conn, map[string]interface{}{"type": "mouse_up"})
	send(t, conn, map[string]interface{}{"type": "detach"})
	readUntil(t, conn, func(m wsFrame) bool { return m.Type == "error" })
	if info, _ := s.Info(); info.State != "detached" {
		t.Errorf("expected detached session, got %s", info.State)
	}
	if !s.Path().Equal(initialPath) {
		t.Errorf("path changed: %v", s.Path().Vertices())
	}
}

func TestWatchWebSocket_RejectsSubjectWildcards(t *testing.T) {
	app := setupApp(makeDeps(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { _ = app.Shutdown() })

	for _, session := range []string{">", "a.*", "abc.def"} {
		u := "ws://" + ln.Addr().String() + "/ws/watch?session=" + url.QueryEscape(session)
		conn, _, err := fastws.DefaultDialer.Dial(u, nil)
		if err != nil {
			t.Fatalf("dial %q: %v", session, err)
		}
		m := readUntil(t, conn, func(m wsFrame) bool { return true })
		conn.Close()
		if m.Type != "error" || m.Error != "invalid session id" {
			t.Errorf("session %q: expected invalid session id, got %+v", session, m)
		}
	}
}
