package lobby

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"majdl/internal/config"
	"majdl/internal/services"
)

func newResourceServer(t *testing.T, resources, schema string) *config.Config {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/0/version.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version":"0.11.42.w"}`))
	})
	mux.HandleFunc("/0/resversion0.11.42.w.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resources))
	})
	mux.HandleFunc("/0/v0.11.40.w/res/proto/liqi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(schema))
	})

	cfg := config.Default()
	cfg.Lobby.VersionURL = srv.URL + "/0/version.json"
	cfg.Lobby.ResourceURL = srv.URL + "/0/resversion{version}.json"
	return &cfg
}

func TestFetchSchemaFollowsResourcePrefix(t *testing.T) {
	sample, err := os.ReadFile("../lqproto/testdata/liqi_sample.json")
	if err != nil {
		t.Fatalf("read sample schema: %v", err)
	}
	cfg := newResourceServer(t, `{"res":{"res/proto/liqi.json":{"prefix":"v0.11.40.w"},"res/config/lqc.lqbin":{"prefix":"v0.11.41.w"}}}`, string(sample))

	schema, err := NewDiscoverer(cfg).FetchSchema(context.Background())
	if err != nil {
		t.Fatalf("FetchSchema: %v", err)
	}
	if schema.Version != "0.11.42.w" {
		t.Fatalf("version = %q", schema.Version)
	}
	if want := cfg.Lobby.VersionURL[:len(cfg.Lobby.VersionURL)-len("version.json")] + "v0.11.40.w/res/proto/liqi.json"; schema.URL != want {
		t.Fatalf("url = %q, want %q", schema.URL, want)
	}
	if string(schema.Data) != string(sample) {
		t.Fatal("schema bytes should be returned unchanged")
	}
	if _, err := schema.Catalog.Lookup("NotifyRoomGameStart"); err != nil {
		t.Fatalf("compiled catalog: %v", err)
	}
}

func TestFetchSchemaMissingResourceEntry(t *testing.T) {
	cfg := newResourceServer(t, `{"res":{}}`, "")
	_, err := NewDiscoverer(cfg).FetchSchema(context.Background())
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestFetchSchemaRejectsUnusableSchema(t *testing.T) {
	cfg := newResourceServer(t, `{"res":{"res/proto/liqi.json":{"prefix":"v0.11.40.w"}}}`, `{"nested":{"lq":{"nested":{}}}}`)
	_, err := NewDiscoverer(cfg).FetchSchema(context.Background())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
