package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/keagan/soundbed/internal/assets"
	"github.com/keagan/soundbed/internal/config"
	"github.com/keagan/soundbed/internal/ffmpeg"
	"github.com/keagan/soundbed/internal/ffmpeg/ffmpegtest"
	"github.com/keagan/soundbed/internal/metrics"
	"github.com/keagan/soundbed/internal/pipeline"
)

type testServer struct {
	handler http.Handler
	toolkit *ffmpegtest.Fake
	store   *assets.Store
}

func newTestServer(t *testing.T, maxBody int64) *testServer {
	t.Helper()
	store, err := assets.New(zerolog.Nop(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	tk := ffmpegtest.New()
	m := metrics.New()

	cfg := config.DefaultConfig()
	p, err := pipeline.New(zerolog.Nop(), cfg, pipeline.Deps{Toolkit: tk, Store: store, Observer: m})
	if err != nil {
		t.Fatal(err)
	}
	srv := New(zerolog.Nop(), p, Options{MaxBodyBytes: maxBody, Metrics: m, AssetDir: store.Dir()})
	return &testServer{handler: srv.Handler(), toolkit: tk, store: store}
}

func (ts *testServer) post(t *testing.T, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var out map[string]any
	json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func (ts *testServer) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (ts *testServer) stored(t *testing.T, name string, seconds float64) {
	t.Helper()
	if err := ts.toolkit.WriteInput(filepath.Join(ts.store.Dir(), name), seconds); err != nil {
		t.Fatal(err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, 0)
	rec := ts.get("/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"transcriber_ready":false`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestMixAudio(t *testing.T) {
	ts := newTestServer(t, 0)
	ts.stored(t, "voice.mp3", 20)
	ts.stored(t, "bed.mp3", 17)

	rec, body := ts.post(t, "/mix-audio", map[string]any{"audio": "voice.mp3", "music": "bed.mp3", "wait_music": 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	filename, _ := body["filename"].(string)
	if body["download_url"] != "/download/"+filename {
		t.Errorf("unexpected download_url %v", body["download_url"])
	}
	if body["mimetype"] != "audio/mp3" {
		t.Errorf("unexpected mimetype %v", body["mimetype"])
	}
	data, err := base64.StdEncoding.DecodeString(body["base64_data"].(string))
	if err != nil || string(data) != "encode" {
		t.Errorf("base64_data should carry the output, got %q (%v)", data, err)
	}

	dl := ts.get("/download/" + filename)
	if dl.Code != http.StatusOK {
		t.Fatalf("download failed with %d", dl.Code)
	}
	if ct := dl.Header().Get("Content-Type"); ct != "audio/mp3" {
		t.Errorf("unexpected content type %s", ct)
	}
	if dl.Body.String() != "encode" {
		t.Errorf("unexpected download body %q", dl.Body.String())
	}
}

func TestMixMissingMusic(t *testing.T) {
	ts := newTestServer(t, 0)
	ts.stored(t, "voice.mp3", 10)

	rec, body := ts.post(t, "/mix-audio", map[string]any{"audio": "voice.mp3"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(body["detail"].(string), "music") {
		t.Errorf("detail should name the field, got %v", body["detail"])
	}
	if calls := ts.toolkit.Calls(); len(calls) != 0 {
		t.Errorf("no media work expected, got %v", calls)
	}
}

func TestMixMissingStoredFile(t *testing.T) {
	ts := newTestServer(t, 0)
	ts.stored(t, "voice.mp3", 10)

	rec, _ := ts.post(t, "/mix-audio", map[string]any{"audio": "voice.mp3", "music": "missing.mp3"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if calls := ts.toolkit.Calls(); len(calls) != 0 {
		t.Errorf("no media work expected, got %v", calls)
	}
}

func TestMixBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"malformed base64", map[string]any{"audio_base64": "***", "music": "bed.mp3"}},
		{"negative wait", map[string]any{"audio": "voice.mp3", "music": "bed.mp3", "wait_music": -2}},
		{"fractional wait", map[string]any{"audio": "voice.mp3", "music": "bed.mp3", "wait_music": 1.5}},
		{"not json", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, 0)
			ts.stored(t, "voice.mp3", 10)
			ts.stored(t, "bed.mp3", 10)

			rec, _ := ts.post(t, "/mix-audio", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestMixStageFailure(t *testing.T) {
	ts := newTestServer(t, 0)
	ts.stored(t, "voice.mp3", 10)
	ts.stored(t, "bed.mp3", 4)
	ts.toolkit.FailOn["fadeout"] = &ffmpeg.ToolkitError{Operation: "fadeout", Message: "Invalid argument"}

	rec, body := ts.post(t, "/mix-audio", map[string]any{"audio": "voice.mp3", "music": "bed.mp3", "wait_music": 2})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body["stage"] != "fadeout" {
		t.Errorf("expected stage fadeout, got %v", body["stage"])
	}

	entries, _ := os.ReadDir(ts.store.Dir())
	if len(entries) != 2 {
		t.Errorf("only the inputs should remain, got %d files", len(entries))
	}
}

func TestMixBodyTooLarge(t *testing.T) {
	ts := newTestServer(t, 64)
	rec, _ := ts.post(t, "/mix-audio", map[string]any{"audio_base64": strings.Repeat("A", 256), "music": "bed.mp3"})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestExtractAudio(t *testing.T) {
	ts := newTestServer(t, 0)
	ts.toolkit.DefaultLength = 30

	rec, body := ts.post(t, "/extract-audio", map[string]any{
		"base64_data": "data:video/mp4;base64," + base64.StdEncoding.EncodeToString([]byte("ftypisom")),
		"filename":    "talk.mp4",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.HasSuffix(body["filename"].(string), "_talk.mp3") {
		t.Errorf("unexpected filename %v", body["filename"])
	}
	if _, ok := body["transcript"]; ok {
		t.Error("transcript should be omitted")
	}
}

func TestExtractUnreadableVideo(t *testing.T) {
	ts := newTestServer(t, 0)

	rec, body := ts.post(t, "/extract-audio", map[string]any{"base64_data": "garbage"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["stage"] != "probe" {
		t.Errorf("expected stage probe, got %v", body["stage"])
	}
	detail, _ := body["detail"].(string)
	if !strings.HasPrefix(detail, "Audio extraction failed") || !strings.Contains(detail, "_video") {
		t.Errorf("unexpected detail %q", detail)
	}
	if strings.Contains(detail, ts.store.Dir()) {
		t.Errorf("detail leaks the asset directory: %q", detail)
	}
}

func TestExtractSilentVideo(t *testing.T) {
	ts := newTestServer(t, 0)
	ts.toolkit.DefaultLength = 5
	ts.toolkit.DefaultNoAudio = true

	rec, body := ts.post(t, "/extract-audio", map[string]any{"base64_data": "AAAA"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["stage"] != "extract" {
		t.Errorf("expected stage extract, got %v", body["stage"])
	}
}

func TestMixErrorHidesPaths(t *testing.T) {
	ts := newTestServer(t, 0)
	ts.stored(t, "voice.mp3", 10)
	ts.stored(t, "bed.mp3", 10)
	bed := filepath.Join(ts.store.Dir(), "bed.mp3")
	ts.toolkit.FailOn["mix"] = &ffmpeg.ToolkitError{Operation: "mix", Message: bed + ": Invalid argument"}

	rec, body := ts.post(t, "/mix-audio", map[string]any{"audio": "voice.mp3", "music": "bed.mp3"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	detail, _ := body["detail"].(string)
	if strings.Contains(detail, ts.store.Dir()) || !strings.Contains(detail, "bed.mp3: Invalid argument") {
		t.Errorf("detail should name only the file, got %q", detail)
	}
}

func TestExtractNeedsSource(t *testing.T) {
	ts := newTestServer(t, 0)
	rec, _ := ts.post(t, "/extract-audio", map[string]any{"filename": "x.mp4"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestExtractTranscribeUnavailable(t *testing.T) {
	ts := newTestServer(t, 0)
	rec, _ := ts.post(t, "/extract-audio", map[string]any{"base64_data": "AAAA", "transcribe": true})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestTranscribeUnavailable(t *testing.T) {
	ts := newTestServer(t, 0)
	ts.stored(t, "talk.mp3", 3)
	rec, _ := ts.post(t, "/transcribe", map[string]any{"filename": "talk.mp3"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestDownloadMissing(t *testing.T) {
	ts := newTestServer(t, 0)
	for _, path := range []string{"/download/nope.mp3", "/download/..secret.mp3"} {
		if rec := ts.get(path); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, 0)
	ts.get("/health")

	rec := ts.get("/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `soundbed_http_requests_total{code="200",route="/health"} 1`) {
		t.Errorf("metrics missing health request:\n%s", rec.Body.String())
	}
}
