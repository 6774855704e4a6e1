package web

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/voxstudio/internal/queue"
)

func TestQueueWS_StreamsSnapshots(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/queue/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.CloseNow()

	read := func() queue.Snapshot {
		t.Helper()
		typ, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if typ != websocket.MessageText {
			t.Fatalf("message type = %v, want text", typ)
		}
		var snap queue.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		return snap
	}

	if snap := read(); snap.MaxSize != queue.DefaultMaxSize || snap.Active != 0 {
		t.Fatalf("initial snapshot = %+v", snap)
	}

	// A job holding the tts lane shows up as active.
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- env.queue.Do(ctx, queue.LaneTTS, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	for {
		snap := read()
		if snap.Lanes[queue.LaneTTS].Active == 1 {
			break
		}
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Do: %v", err)
	}

	conn.Close(websocket.StatusNormalClosure, "")
}
