package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/annel0/voxel-editor/internal/editor"
	"github.com/annel0/voxel-editor/internal/render"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type streamFixture struct {
	manager *editor.Manager
	streams *Streams
	loop    *editor.Loop
	server  *httptest.Server
}

func newStreamFixture(t *testing.T) *streamFixture {
	t.Helper()

	streams := NewStreams(NewMetrics(prometheus.NewRegistry()))

	cfg := editor.DefaultConfig()
	cfg.FrameInterval = 0
	cfg.Camera.Position = vec.Vec3Float{X: 0.5, Y: 10, Z: 0.5}
	cfg.Camera.Target = vec.Vec3Float{X: 0.5, Y: 0, Z: 0.5}
	cfg.Camera.Up = vec.Vec3Float{Z: -1}

	manager, err := editor.NewManager(cfg, editor.WithSinkFactory(streams.SinkFactory()))
	require.NoError(t, err)

	loop, err := manager.Create()
	require.NoError(t, err)
	require.NoError(t, loop.Do(context.Background(), func(s *editor.Session) error {
		s.Frame()
		return nil
	}))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = streams.Serve(w, r, loop)
	}))

	t.Cleanup(func() {
		server.Close()
		streams.CloseAll()
		manager.Close()
	})
	return &streamFixture{manager: manager, streams: streams, loop: loop, server: server}
}

func (f *streamFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readUntil читает сообщения до первого сообщения типа msgType включительно
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) []Message {
	t.Helper()
	var out []Message
	for i := 0; i < 64; i++ {
		msg := readMessage(t, conn)
		out = append(out, msg)
		if msg.Type == msgType {
			return out
		}
	}
	t.Fatalf("сообщение %s не получено", msgType)
	return nil
}

func types(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func TestStreamReplaysSceneOnConnect(t *testing.T) {
	f := newStreamFixture(t)
	ctx := context.Background()

	require.NoError(t, f.loop.Do(ctx, func(s *editor.Session) error {
		_, _, err := s.PrimaryPress(ctx)
		return err
	}))

	conn := f.dial(t)

	reset := readMessage(t, conn)
	assert.Equal(t, MsgTypeReset, reset.Type)
	assert.Equal(t, uint32(0), reset.Sequence)

	upsert := readMessage(t, conn)
	require.Equal(t, MsgTypeUpsert, upsert.Type)
	var data UpsertData
	require.NoError(t, json.Unmarshal(upsert.Data, &data))
	assert.Equal(t, 0, data.Slot)
	assert.Equal(t, vec.Vec3Float{X: 0.5, Y: 0.5, Z: 0.5}, data.Instance.Position)
	assert.Equal(t, uint32(1), upsert.Sequence)

	shadow := readMessage(t, conn)
	require.Equal(t, MsgTypeShadow, shadow.Type)
	var sd ShadowData
	require.NoError(t, json.Unmarshal(shadow.Data, &sd))
	assert.True(t, sd.Visible)
	assert.Equal(t, vec.Vec3Float{X: 0.5, Y: 1.5, Z: 0.5}, sd.Instance.Position)

	assert.Eventually(t, func() bool { return f.streams.Hub(f.loop.ID()).Clients() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestStreamAppliesInputAndBroadcasts(t *testing.T) {
	f := newStreamFixture(t)

	placer := f.dial(t)
	watcher := f.dial(t)
	readUntil(t, placer, MsgTypeShadow)
	readUntil(t, watcher, MsgTypeShadow)

	require.NoError(t, placer.WriteJSON(editor.Input{Type: editor.InputPress, Button: "primary"}))

	got := readUntil(t, placer, MsgTypeResult)
	assert.Contains(t, types(got), MsgTypeUpsert)

	var result ResultData
	require.NoError(t, json.Unmarshal(got[len(got)-1].Data, &result))
	assert.Equal(t, editor.InputPress, result.Input)
	require.NotNil(t, result.Result.Placed)
	assert.Equal(t, 1, result.Result.View.Voxels)

	// второй клиент видит то же изменение, но не ответ
	msg := readUntil(t, watcher, MsgTypeUpsert)
	assert.NotContains(t, types(msg), MsgTypeResult)
}

func TestStreamReportsInputErrors(t *testing.T) {
	f := newStreamFixture(t)
	conn := f.dial(t)
	readUntil(t, conn, MsgTypeShadow)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := readUntil(t, conn, MsgTypeError)
	var ed ErrorData
	require.NoError(t, json.Unmarshal(msg[len(msg)-1].Data, &ed))
	assert.Contains(t, ed.Message, "invalid input")

	require.NoError(t, conn.WriteJSON(editor.Input{Type: editor.InputColor, Index: 42}))
	msg = readUntil(t, conn, MsgTypeError)
	require.NoError(t, json.Unmarshal(msg[len(msg)-1].Data, &ed))
	assert.Equal(t, editor.InputColor, ed.Input)
}

func TestStreamClosedWithSession(t *testing.T) {
	f := newStreamFixture(t)
	conn := f.dial(t)
	readUntil(t, conn, MsgTypeShadow)

	f.streams.Close(f.loop.ID())
	readUntil(t, conn, MsgTypeClosed)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := newHub("slow", nil, nil)
	client := &Client{id: "c1"}
	client.open(0)
	hub.clients[client.id] = client

	for i := 0; i < sendQueue+10; i++ {
		hub.Upsert(i, render.Instance{})
	}
	assert.Equal(t, 0, hub.Clients())
	assert.True(t, client.closed)
}

func TestStreamsNotOpenedForRejectedSessions(t *testing.T) {
	streams := NewStreams(NewMetrics(prometheus.NewRegistry()))
	defer streams.CloseAll()

	cfg := editor.DefaultConfig()
	cfg.FrameInterval = 0
	manager, err := editor.NewManager(cfg,
		editor.WithMaxSessions(1),
		editor.WithSinkFactory(streams.SinkFactory()),
		editor.WithSinkRelease(streams.Close),
	)
	require.NoError(t, err)
	defer manager.Close()

	_, err = manager.Create()
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = manager.Create()
		assert.ErrorIs(t, err, editor.ErrTooManySessions)
	}
	assert.Equal(t, 1, streams.Sessions())
}
