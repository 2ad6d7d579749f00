package replay

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amazon-ion/ion-go/ion"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	yaml "gopkg.in/yaml.v3"

	"xpo/config"
	"xpo/scenario"
	"xpo/state"
)

const scenarioTmpl = `<?xml version="1.0" encoding="UTF-8"?>
<scenario name="%s" window="400x800">
  <tree>
    <div key="root">
      <div key="a" bind="item-a"/>
    </div>
  </tree>
  <script>
    <start/>
    <layout node="a" x="0" y="0" w="100" h="100"/>
    <attach node="a"/>
    <expect-notify visible="a"/>
    <expect node="a" status="%s"/>
  </script>
</scenario>
`

// setupTestEnv creates a test environment with proper context and logger
func setupTestEnv(t *testing.T) (context.Context, *state.LocalEnv) {
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx := state.ContextWithEnv(t.Context())
	env := state.EnvFromContext(ctx)
	env.Log = logger
	env.Cfg = cfg
	return ctx, env
}

func scenarioData(name string, pass bool) []byte {
	status := "visible"
	if !pass {
		status = "invisible"
	}
	return fmt.Appendf(nil, scenarioTmpl, name, status)
}

func writeScenario(t *testing.T, path, name string, pass bool) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, scenarioData(name, pass), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeArchive(t *testing.T, path string, files map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func newBatch(env *state.LocalEnv, dst string, format config.OutputFormat) *batch {
	return &batch{env: env, dst: dst, format: format, log: env.Log.Named("replay")}
}

func readResult(t *testing.T, path string) *scenario.Result {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	res := &scenario.Result{}
	if err := yaml.Unmarshal(data, res); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return res
}

func TestProcessFile(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := filepath.Join(t.TempDir(), "single.xml")
	writeScenario(t, src, "Single node", true)
	dst := t.TempDir()

	b := newBatch(env, dst, config.OutputFormatYaml)
	if err := b.process(ctx, src); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if err := b.summary(); err != nil {
		t.Fatalf("summary() error = %v", err)
	}

	res := readResult(t, filepath.Join(dst, "single-node.yaml"))
	if res.Name != "Single node" {
		t.Errorf("Name = %q", res.Name)
	}
	if res.Session != env.Session.String() {
		t.Errorf("Session = %q, want %q", res.Session, env.Session)
	}
	if len(res.Notifications) != 1 || res.Notifications[0].Data != "item-a" {
		t.Errorf("Notifications = %+v", res.Notifications)
	}
	if len(res.Failures) != 0 {
		t.Errorf("Failures = %v", res.Failures)
	}
}

func TestProcessDirText(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := t.TempDir()
	writeScenario(t, filepath.Join(src, "one.xml"), "One", true)
	writeScenario(t, filepath.Join(src, "nested", "two.xml"), "Two", true)
	if err := os.WriteFile(filepath.Join(src, "notes.txt"), []byte("not a scenario"), 0644); err != nil {
		t.Fatal(err)
	}
	dst := t.TempDir()

	b := newBatch(env, dst, config.OutputFormatText)
	if err := b.process(ctx, src); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if len(b.done) != 2 {
		t.Fatalf("played %d scenarios, want 2", len(b.done))
	}
	for _, name := range []string{"one.txt", filepath.Join("nested", "two.txt")} {
		data, err := os.ReadFile(filepath.Join(dst, name))
		if err != nil {
			t.Errorf("missing output %s: %v", name, err)
			continue
		}
		if !strings.Contains(string(data), ": passed") {
			t.Errorf("%s:\n%s", name, data)
		}
	}
}

func TestProcessArchive(t *testing.T) {
	ctx, env := setupTestEnv(t)
	archivePath := filepath.Join(t.TempDir(), "bundle.zip")
	writeArchive(t, archivePath, map[string][]byte{
		"set/a.xml":    scenarioData("A", true),
		"set/b.xml":    scenarioData("B", true),
		"other/c.xml":  scenarioData("C", true),
		"set/read.txt": []byte("skip me"),
	})
	dst := t.TempDir()

	b := newBatch(env, dst, config.OutputFormatYaml)
	if err := b.process(ctx, filepath.Join(archivePath, "set")); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if len(b.done) != 2 {
		t.Fatalf("played %d scenarios, want 2", len(b.done))
	}
	for _, name := range []string{"a.yaml", "b.yaml"} {
		if _, err := os.Stat(filepath.Join(dst, "set", name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dst, "other", "c.yaml")); err == nil {
		t.Error("scenario outside of requested path was played")
	}
}

func TestProcessFailedExpectations(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := t.TempDir()
	writeScenario(t, filepath.Join(src, "good.xml"), "Good", true)
	writeScenario(t, filepath.Join(src, "bad.xml"), "Bad", false)
	dst := t.TempDir()

	b := newBatch(env, dst, config.OutputFormatYaml)
	if err := b.process(ctx, src); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	err := b.summary()
	if !errors.Is(err, scenario.ErrFailed) {
		t.Fatalf("summary() error = %v, want ErrFailed", err)
	}
	if b.done[0].src != "bad.xml" || b.done[0].passed {
		t.Errorf("first outcome = %+v", b.done[0])
	}

	// failed result is still written
	res := readResult(t, filepath.Join(dst, "bad.yaml"))
	if len(res.Failures) != 1 {
		t.Errorf("Failures = %v", res.Failures)
	}
}

func TestProcessBrokenScenario(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := t.TempDir()
	writeScenario(t, filepath.Join(src, "good.xml"), "Good", true)
	if err := os.WriteFile(filepath.Join(src, "broken.xml"), []byte("<scenario><tree>"), 0644); err != nil {
		t.Fatal(err)
	}
	dst := t.TempDir()

	b := newBatch(env, dst, config.OutputFormatYaml)
	if err := b.process(ctx, src); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if err := b.summary(); err == nil {
		t.Error("broken scenario was not reported")
	}
	if _, err := os.Stat(filepath.Join(dst, "good.yaml")); err != nil {
		t.Errorf("good scenario was not played: %v", err)
	}
}

func TestProcessOverwrite(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := filepath.Join(t.TempDir(), "again.xml")
	writeScenario(t, src, "Again", true)
	dst := t.TempDir()

	if err := newBatch(env, dst, config.OutputFormatYaml).process(ctx, src); err != nil {
		t.Fatal(err)
	}

	b := newBatch(env, dst, config.OutputFormatYaml)
	if err := b.process(ctx, src); err != nil {
		t.Fatal(err)
	}
	if err := b.summary(); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("summary() error = %v, want existing output error", err)
	}

	env.Overwrite = true
	b = newBatch(env, dst, config.OutputFormatYaml)
	if err := b.process(ctx, src); err != nil {
		t.Fatal(err)
	}
	if err := b.summary(); err != nil {
		t.Errorf("summary() with overwrite error = %v", err)
	}
}

func TestProcessNotFound(t *testing.T) {
	ctx, env := setupTestEnv(t)
	b := newBatch(env, t.TempDir(), config.OutputFormatYaml)

	dir := t.TempDir()
	if err := b.process(ctx, filepath.Join(dir, "missing", "file.xml")); err == nil {
		t.Error("expected error for path under existing directory")
	}
}

func TestProcessCanceled(t *testing.T) {
	ctx, env := setupTestEnv(t)
	ctx, cancel := context.WithCancel(ctx)
	cancel()

	b := newBatch(env, t.TempDir(), config.OutputFormatYaml)
	if err := b.process(ctx, t.TempDir()); !errors.Is(err, context.Canceled) {
		t.Errorf("process() error = %v, want context.Canceled", err)
	}
}

func TestOutputPath(t *testing.T) {
	_, env := setupTestEnv(t)
	b := newBatch(env, "/out", config.OutputFormatText)
	tests := []struct {
		src, name, want string
	}{
		{"a.xml", "Scroll view", filepath.Join("/out", "scroll-view.txt")},
		{filepath.Join("x", "y.xml"), "Y", filepath.Join("/out", "x", "y.txt")},
		{"fallback.xml", "", filepath.Join("/out", "fallback.txt")},
		{"!!!.xml", "???", filepath.Join("/out", "scenario.txt")},
	}
	for _, tt := range tests {
		if got := b.outputPath(tt.src, &scenario.Result{Name: tt.name}); got != tt.want {
			t.Errorf("outputPath(%q, %q) = %q, want %q", tt.src, tt.name, got, tt.want)
		}
	}
}

func TestOutputPathTemplate(t *testing.T) {
	_, env := setupTestEnv(t)
	res := &scenario.Result{Name: "Scroll View", Session: "0192ABCD-7000-7000-8000-000000000000", Steps: 4}

	tests := []struct {
		name, tmpl, src, want string
	}{
		{"session dir", `{{ .Session | trunc 8 }}/{{ .SourceFile }}`, "y.xml", filepath.Join("/out", "0192abcd", "y.yaml")},
		{"status", `{{ if .Passed }}ok{{ else }}bad{{ end }}-{{ .Name }}`, filepath.Join("d", "y.xml"), filepath.Join("/out", "d", "ok-scroll-view.yaml")},
		{"no escape", `../../{{ .Format }}/./{{ .Steps }}`, "y.xml", filepath.Join("/out", "yaml", "4.yaml")},
		{"empty expansion", `{{ "" }}`, "y.xml", filepath.Join("/out", "scroll-view.yaml")},
		{"failed expansion", `{{ index .Name 100 }}`, "y.xml", filepath.Join("/out", "scroll-view.yaml")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBatch(env, "/out", config.OutputFormatYaml)
			var err error
			if b.tmpl, err = parseNameTemplate(tt.tmpl); err != nil {
				t.Fatalf("parseNameTemplate() error = %v", err)
			}
			if got := b.outputPath(tt.src, res); got != tt.want {
				t.Errorf("outputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseNameTemplate(t *testing.T) {
	if tmpl, err := parseNameTemplate(""); tmpl != nil || err != nil {
		t.Errorf("empty template = %v, %v", tmpl, err)
	}
	if _, err := parseNameTemplate("{{ .Name "); err == nil {
		t.Error("expected error for broken template")
	}
}

func TestProcessIon(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := filepath.Join(t.TempDir(), "binary.xml")
	writeScenario(t, src, "Binary", true)
	dst := t.TempDir()

	b := newBatch(env, dst, config.OutputFormatIon)
	if err := b.process(ctx, src); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dst, "binary.ion"))
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	res := scenario.Result{}
	if err := ion.Unmarshal(data, &res); err != nil {
		t.Fatalf("ion.Unmarshal() error = %v", err)
	}
	if res.Name != "Binary" || len(res.Notifications) != 1 || !res.Notifications[0].Visible {
		t.Errorf("result = %+v", res)
	}
}

func TestRunCommand(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := filepath.Join(t.TempDir(), "cli.xml")
	writeScenario(t, src, "Command line", true)
	dst := t.TempDir()

	cmd := &cli.Command{
		Name:   "replay",
		Action: Run,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "overwrite"},
			&cli.StringFlag{Name: "format"},
			&cli.StringFlag{Name: "force-zip-cp"},
			&cli.StringFlag{Name: "history"},
			&cli.BoolFlag{Name: "check"},
			&cli.BoolFlag{Name: "dump-registry"},
		},
	}
	db := filepath.Join(t.TempDir(), "history.db")
	if err := cmd.Run(ctx, []string{"replay", "--format", "text", "--force-zip-cp", "cp866", "--history", db, src, dst}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "command-line.txt")); err != nil {
		t.Errorf("missing output: %v", err)
	}
	if env.CodePage == nil {
		t.Error("code page was not set")
	}
	if _, err := os.Stat(db); err != nil {
		t.Errorf("history database was not created: %v", err)
	}
}

func TestProcessCheckOnly(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := t.TempDir()
	writeScenario(t, filepath.Join(src, "bad.xml"), "Bad", false)
	dst := t.TempDir()

	b := newBatch(env, dst, config.OutputFormatYaml)
	b.check = true
	if err := b.process(ctx, src); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	// expectations are not evaluated without playing
	if err := b.summary(); err != nil {
		t.Errorf("summary() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "bad.yaml")); err == nil {
		t.Error("result was written in check mode")
	}
}
