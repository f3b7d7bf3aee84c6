package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/ytrelay-go/internal/domain"
)

func newFakeServer(t *testing.T, events []domain.ProgressEvent) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","version":"1.0.0","tasks":{"active":0},"subscribers":0}`))
	})
	mux.HandleFunc("/api/v1/download/info", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["url"] == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"detail":"failed to fetch media: unsupported URL"}`))
			return
		}
		w.Write([]byte(`{"title":"Clip","qualities":[{"height":720,"filesize":2048,"format_id":"136"}],"audio_filesize":512}`))
	})
	mux.HandleFunc("/api/v1/download/start", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, float64(720), body["quality"])
		w.Write([]byte(`{"task_id":"task-1","status":"pending","message":"ok"}`))
	})
	mux.HandleFunc("/api/v1/download/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", "attachment; filename=audio.m4a")
		w.Write([]byte("relayed"))
	})
	mux.HandleFunc("/api/v1/download/file/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/download/file/My Clip.mp4" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"file not found"}`))
			return
		}
		w.Write([]byte("file-bytes"))
	})
	mux.HandleFunc("/ws/task-1", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, e := range events {
			conn.WriteJSON(e)
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClient_Info(t *testing.T) {
	server := newFakeServer(t, nil)
	client := newAPIClient(server.URL + "/")

	info, err := client.Info(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)
	assert.Equal(t, "Clip", info.Title)
	assert.Equal(t, []domain.Quality{{Height: 720, Filesize: 2048, FormatID: "136"}}, info.Qualities)

	_, err = client.Info(context.Background(), "bad")
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "failed to fetch media: unsupported URL", apiErr.Detail)
}

func TestClient_StartAndWatch(t *testing.T) {
	server := newFakeServer(t, []domain.ProgressEvent{
		domain.NewDownloadingEvent("task-1", 40, 1024, 3, "My Clip.mp4"),
		domain.NewFinishedEvent("task-1", "My Clip.mp4"),
	})
	client := newAPIClient(server.URL)

	q := 720
	started, err := client.Start(context.Background(), "https://youtu.be/abc", &q)
	require.NoError(t, err)
	assert.Equal(t, "task-1", started.TaskID)

	var seen []domain.ProgressEvent
	final, err := client.Watch(context.Background(), started.TaskID, func(e domain.ProgressEvent) {
		seen = append(seen, e)
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressFinished, final.Status)
	assert.Len(t, seen, 2)
}

func TestClient_WatchClosedEarly(t *testing.T) {
	server := newFakeServer(t, []domain.ProgressEvent{
		domain.NewDownloadingEvent("task-1", 10, 0, 0, ""),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := newAPIClient(server.URL).Watch(ctx, "task-1", nil)
	assert.Error(t, err)
}

func TestClient_StreamAndFetch(t *testing.T) {
	server := newFakeServer(t, nil)
	client := newAPIClient(server.URL)

	var buf bytes.Buffer
	name, n, err := client.Stream(context.Background(), streamRequest{URL: "u", Mode: "audio"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "audio.m4a", name)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, "relayed", buf.String())

	buf.Reset()
	n, err = client.Fetch(context.Background(), "My Clip.mp4", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	_, err = client.Fetch(context.Background(), "missing.mp4", &buf)
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestServerDetection(t *testing.T) {
	server := newFakeServer(t, nil)
	assert.True(t, isServerRunning(server.URL))
	assert.False(t, isServerRunning("http://127.0.0.1:1"))

	assert.True(t, isLocalServer("http://localhost:8000"))
	assert.True(t, isLocalServer("http://127.0.0.1:8000"))
	assert.True(t, isLocalServer("http://[::1]:8000"))
	assert.False(t, isLocalServer("https://relay.example.com"))
}

func TestWebsocketURL(t *testing.T) {
	u, err := newAPIClient("https://relay.example.com").websocketURL("/ws/abc")
	require.NoError(t, err)
	assert.Equal(t, "wss://relay.example.com/ws/abc", u)

	u, err = newAPIClient("http://localhost:8000").websocketURL("/ws/abc")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8000/ws/abc", u)
}
