package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"majdl/internal/lqproto"
	"majdl/internal/testsupport"
)

func setupCLIHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("MAJDL_OUTPUT_DIR", "")
	t.Setenv("MAJDL_MEMOIZE_FILE", "")
	t.Chdir(home)
	return home
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	home := setupCLIHome(t)

	target := filepath.Join(home, "majdl.toml")
	out, _, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}

	out, _, err = runCLI(t, "--config", target, "--output", filepath.Join(home, "records"), "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Output directory: "+filepath.Join(home, "records"))
}

func TestDownloadRequiresOutputDir(t *testing.T) {
	setupCLIHome(t)

	_, _, err := runCLI(t, "-N")
	if err == nil || !strings.Contains(err.Error(), "paths.output_dir") {
		t.Fatalf("expected output dir error, got %v", err)
	}
}

func TestDecodeOnlyRun(t *testing.T) {
	home := setupCLIHome(t)
	dir := filepath.Join(home, "records")
	blob := testsupport.DetailBlob(t, testsupport.SampleActions()...)
	testsupport.WriteDocument(t, dir, "231001-abc", map[string]any{
		"head": map[string]any{"uuid": "231001-abc"},
		"data": base64.StdEncoding.EncodeToString(blob),
	})

	out, _, err := runCLI(t, "--output", dir, "-N")
	if err != nil {
		t.Fatalf("decode run: %v", err)
	}
	requireContains(t, out, "decoded")

	doc := testsupport.ReadDocument(t, dir, "231001-abc")
	details, ok := doc["details"].([]any)
	if !ok || len(details) != len(testsupport.SampleActions()) {
		t.Fatalf("details = %#v", doc["details"])
	}
}

func TestStatusCommand(t *testing.T) {
	home := setupCLIHome(t)
	dir := filepath.Join(home, "records")
	testsupport.WriteDocument(t, dir, "r1", map[string]any{"dataUrl": "https://cdn.example/r1"})
	testsupport.WriteDocument(t, dir, "r2", map[string]any{"data": "AA==", "details": []any{map[string]any{"@type": "RecordNewRound"}}})

	out, _, err := runCLI(t, "status", "--output", dir)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "r1")
	requireContains(t, out, "Fetched")
	requireContains(t, out, "Decoded")
}

func TestStatusEmptyDirectory(t *testing.T) {
	home := setupCLIHome(t)
	dir := filepath.Join(home, "empty")

	out, _, err := runCLI(t, "status", "--output", dir)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "No records in")
}

// sampleSchema must run before setupCLIHome changes the working directory.
func sampleSchema(t *testing.T) []byte {
	t.Helper()
	return testsupport.ReadBytes(t, filepath.Join("..", "..", "internal", "lqproto", "testdata", "liqi_sample.json"))
}

func TestSchemaFetch(t *testing.T) {
	schema := sampleSchema(t)
	home := setupCLIHome(t)

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	mux.HandleFunc("/0/version.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version":"0.11.42.w"}`))
	})
	mux.HandleFunc("/0/resversion0.11.42.w.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"res":{"res/proto/liqi.json":{"prefix":"v0.11.40.w"}}}`))
	})
	mux.HandleFunc("/0/v0.11.40.w/res/proto/liqi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write(schema)
	})

	cfgPath := filepath.Join(home, "majdl.toml")
	cfgBody := fmt.Sprintf("[lobby]\nversion_url = %q\nresource_url = %q\n",
		srv.URL+"/0/version.json", srv.URL+"/0/resversion{version}.json")
	if err := os.WriteFile(cfgPath, []byte(cfgBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, _, err := runCLI(t, "--config", cfgPath, "schema", "fetch")
	if err != nil {
		t.Fatalf("schema fetch: %v", err)
	}
	target := filepath.Join(home, ".config", "majdl", "liqi.json")
	requireContains(t, out, "Schema for client 0.11.42.w saved to "+target)
	if got := testsupport.ReadBytes(t, target); !bytes.Equal(got, schema) {
		t.Fatalf("saved schema differs from served schema")
	}

	out, _, err = runCLI(t, "--config", cfgPath, "schema", "show")
	if err != nil {
		t.Fatalf("schema show: %v", err)
	}
	requireContains(t, out, "Schema: "+target)
}

func TestSchemaShowWithoutFile(t *testing.T) {
	setupCLIHome(t)

	out, _, err := runCLI(t, "schema", "show")
	if err != nil {
		t.Fatalf("schema show: %v", err)
	}
	requireContains(t, out, "Schema: compiled-in")
}

func TestDecodeOnlyRunUsesSchemaFile(t *testing.T) {
	schema := sampleSchema(t)
	home := setupCLIHome(t)
	schemaPath := filepath.Join(home, ".config", "majdl", "liqi.json")
	if err := os.MkdirAll(filepath.Dir(schemaPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(schemaPath, schema, 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}

	// tile_state is declared only by the client schema.
	payload := testsupport.Message(t, "RecordDealTile", lqproto.Fields{"seat": 1, "tile": "5m"})
	payload = protowire.AppendTag(payload, 9, protowire.VarintType)
	payload = protowire.AppendVarint(payload, 1)
	blob := testsupport.ContainerBlob(t, ".lq.GameDetailRecords",
		testsupport.Wrap(t, lqproto.WireName("RecordDealTile"), payload))

	dir := filepath.Join(home, "records")
	testsupport.WriteDocument(t, dir, "231001-def", map[string]any{
		"head": map[string]any{"uuid": "231001-def"},
		"data": base64.StdEncoding.EncodeToString(blob),
	})

	if _, _, err := runCLI(t, "--output", dir, "-N"); err != nil {
		t.Fatalf("decode run: %v", err)
	}

	doc := testsupport.ReadDocument(t, dir, "231001-def")
	details, ok := doc["details"].([]any)
	if !ok || len(details) != 1 {
		t.Fatalf("details = %#v", doc["details"])
	}
	deal := details[0].(map[string]any)
	if deal["tileState"] != float64(1) {
		t.Fatalf("tileState = %#v", deal["tileState"])
	}
	if _, ok := deal["@unknown"]; ok {
		t.Fatalf("unexpected @unknown member: %#v", deal)
	}
}
