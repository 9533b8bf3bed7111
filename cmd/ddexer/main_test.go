package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"ddexer/internal/config"
	"ddexer/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithSource(config.Source{
		Name: "label",
		SDK:  config.SDK{APIKey: "label-key", APISecret: "label-secret", Endpoint: "http://127.0.0.1:1"},
	}))
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "ddexer.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("ddexer %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q, got:\n%s", substr, output)
	}
}

func TestIngestListShowRetry(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "users", "add", "--id", "u1", "--name", "Example Artist")
	requireContains(t, out, "Registered Example Artist (u1) for label")
	requireContains(t, out, "Re-parsed 0")

	dropDir := filepath.Join(env.baseDir, "drop", "20240301")
	doc := testsupport.SingleTrackERN(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "USCLI2400001", "Command Line Song").XML()
	testsupport.WriteFile(t, filepath.Join(dropDir, "release.xml"), doc)

	out = env.mustRun(t, "ingest", filepath.Join(env.baseDir, "drop"))
	requireContains(t, out, "Ingested 1 document(s) for label")

	out = env.mustRun(t, "releases", "list")
	requireContains(t, out, "USCLI2400001")
	requireContains(t, out, "PublishPending")

	out = env.mustRun(t, "releases", "show", "USCLI2400001", "--json")
	var view struct {
		Key    string `json:"key"`
		Status string `json:"status"`
		User   string `json:"user"`
	}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode show output: %v\n%s", err, out)
	}
	if view.Key != "USCLI2400001" || view.Status != "PublishPending" || view.User != "u1" {
		t.Fatalf("unexpected release view: %+v", view)
	}

	out = env.mustRun(t, "xml", "list")
	requireContains(t, out, "release.xml")

	out = env.mustRun(t, "xml", "show", filepath.Join(dropDir, "release.xml"))
	requireContains(t, out, "Command Line Song")

	out = env.mustRun(t, "releases", "retry", "USCLI2400001")
	requireContains(t, out, "Reset 1 of 1")

	if _, err := env.run(t, "releases", "retry", "MISSING"); err == nil {
		t.Fatal("expected retry of unknown key to fail")
	}
}

func TestReleasesListRejectsUnknownStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.run(t, "releases", "list", "--status", "Bogus"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestUsersListAndRemove(t *testing.T) {
	env := setupCLITestEnv(t)

	env.mustRun(t, "users", "add", "--id", "u9", "--name", "Someone", "--handle", "someone", "--no-reparse")
	out := env.mustRun(t, "users", "list")
	requireContains(t, out, "u9")
	requireContains(t, out, "someone")
	out = env.mustRun(t, "users", "list", "--json")
	requireContains(t, out, `"id": "u9"`)
	requireContains(t, out, `"source": "label"`)

	out = env.mustRun(t, "users", "remove", "u9")
	requireContains(t, out, "Removed u9 from label")

	if _, err := env.run(t, "users", "remove", "u9"); err == nil {
		t.Fatal("expected second remove to fail")
	}
	if out := env.mustRun(t, "users", "list", "--json"); strings.TrimSpace(out) != "[]" {
		t.Fatalf("expected empty json list, got %q", out)
	}
}

func TestSimulateRequiresRegisteredUser(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, err := env.run(t, "simulate", "--user", "nobody"); err == nil {
		t.Fatal("expected error for unregistered user")
	}

	env.mustRun(t, "users", "add", "--id", "u3", "--name", "Sim Artist", "--no-reparse")
	out := env.mustRun(t, "simulate", "--user", "u3")
	requireContains(t, out, "ingested from")
	requireContains(t, out, "Decision: replace")
}

func TestMarkersResetNeedsBucket(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "markers", "list")
	requireContains(t, out, "No markers")

	if _, err := env.run(t, "markers", "reset", "--source", "label"); err == nil {
		t.Fatal("expected error for a source without bucket")
	}
}

func TestStatusOffline(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "status", "--offline")
	requireContains(t, out, "Not running")
	requireContains(t, out, "Last publish pass")
	requireContains(t, out, "Data directory")
	requireContains(t, out, "PublishPending")
}

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	target := filepath.Join(env.baseDir, "init", "config.toml")
	out := env.mustRun(t, "config", "init", "--path", target)
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}
	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}

	out = env.mustRun(t, "config", "show")
	requireContains(t, out, "label-key")
	if strings.Contains(out, "label-secret") {
		t.Fatalf("secret leaked into config show:\n%s", out)
	}
}

func TestEnvFileSuppliesSecrets(t *testing.T) {
	env := setupCLITestEnv(t)
	cfg := *env.cfg
	cfg.Sources = []config.Source{{Name: "label", SDK: config.SDK{APIKey: "label-key"}}}
	writeTestConfig(t, env.configPath, &cfg)

	const key = "DDEXER_LABEL_SDK_API_SECRET"
	t.Setenv(key, "")
	os.Unsetenv(key)

	envFile := filepath.Join(env.baseDir, "test.env")
	if err := os.WriteFile(envFile, []byte(key+"=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out := env.mustRun(t, "--env-file", envFile, "config", "show", "--show-secrets")
	requireContains(t, out, "from-dotenv")
}
