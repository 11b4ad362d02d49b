package realtime

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestReadLoopLogsAndSkipsMalformedFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"delta":"x"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"session.created","session":{"id":"conv-9"}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	logOut := &lockedBuffer{}
	logger := slog.New(slog.NewTextHandler(logOut, nil))

	sess, err := WSDialer{}.Dial(context.Background(), Config{URL: srv.URL, Logger: logger})
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer sess.Close()

	select {
	case ev := <-sess.Events():
		created, ok := ev.(CreatedEvent)
		if !ok || created.SessionID != "conv-9" {
			t.Fatalf("unexpected event %#v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the frame after the malformed one")
	}
	if !strings.Contains(logOut.String(), "malformed backend frame") {
		t.Fatalf("expected a dropped-frame log line, got %q", logOut.String())
	}
}
