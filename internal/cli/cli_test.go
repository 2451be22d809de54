// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jeranaias/brainchat/internal/app"
	"github.com/jeranaias/brainchat/internal/config"
	"github.com/jeranaias/brainchat/internal/engine"
	"github.com/jeranaias/brainchat/internal/engine/enginetest"
	"github.com/jeranaias/brainchat/internal/model"
	"github.com/jeranaias/brainchat/internal/ollama"
	"github.com/jeranaias/brainchat/internal/storage"
	"github.com/jeranaias/brainchat/internal/title"
)

func TestMain(m *testing.M) {
	ForceColorsEnabled(false)
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

// =============================================================================
// SLASH COMMAND PARSING
// =============================================================================

func TestParseSlashCommand(t *testing.T) {
	tests := []struct {
		input    string
		wantOK   bool
		wantName string
		wantArgs []string
	}{
		{"hello", false, "", nil},
		{"/help", true, cmdHelp, []string{}},
		{"/", true, cmdHelp, []string{}},
		{"  /Q  ", true, cmdQuit, []string{}},
		{"/exit", true, cmdQuit, []string{}},
		{"/switch 3", true, cmdSwitch, []string{"3"}},
		{"/model  llama3:8b", true, cmdModel, []string{"llama3:8b"}},
		{"/rm 2", true, cmdDelete, []string{"2"}},
		{"/bogus x", true, "/bogus", []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, ok := parseSlashCommand(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if cmd.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", cmd.Name, tt.wantName)
			}
			if strings.Join(cmd.Args, ",") != strings.Join(tt.wantArgs, ",") {
				t.Errorf("Args = %v, want %v", cmd.Args, tt.wantArgs)
			}
		})
	}
}

func TestCompleteCommand(t *testing.T) {
	got := completeCommand("/s")
	if strings.Join(got, ",") != "/switch,/status" {
		t.Errorf("completeCommand(/s) = %v", got)
	}
	if got := completeCommand("hello"); got != nil {
		t.Errorf("completeCommand(hello) = %v, want nil", got)
	}
	if got := completeCommand("/switch 1"); got != nil {
		t.Errorf("completeCommand with args = %v, want nil", got)
	}
}

// =============================================================================
// SESSION SELECTION AND FORMATTING
// =============================================================================

func sampleSessions() []model.ChatSession {
	return []model.ChatSession{
		{ID: "aaa111", Title: "Alpha", Messages: []model.Message{model.NewUserMessage("first question")}},
		{ID: "bbb222", Title: "Beta", IsPinned: true},
		{ID: "bbb333", Title: "Gamma"},
	}
}

func TestResolveSession(t *testing.T) {
	sessions := sampleSessions()

	tests := []struct {
		name     string
		selector string
		activeID string
		wantID   string
		wantErr  bool
	}{
		{"number", "2", "", "bbb222", false},
		{"number out of range", "4", "", "", true},
		{"zero", "0", "", "", true},
		{"full id", "bbb333", "", "bbb333", false},
		{"unique prefix", "aaa", "", "aaa111", false},
		{"ambiguous prefix", "bbb", "", "", true},
		{"no match", "zzz", "", "", true},
		{"empty means active", "", "bbb333", "bbb333", false},
		{"empty without active", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := resolveSession(tt.selector, sessions, tt.activeID)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && s.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", s.ID, tt.wantID)
			}
		})
	}
}

func TestFormatSessionMenu(t *testing.T) {
	out := formatSessionMenu(sampleSessions(), "bbb333", 80)

	pinned := strings.Index(out, "Pinned")
	chats := strings.Index(out, "Chats")
	if pinned < 0 || chats < 0 || pinned > chats {
		t.Fatalf("pinned group should come first:\n%s", out)
	}
	if !strings.Contains(out, "2. Beta *") {
		t.Errorf("pinned session should keep its collection number:\n%s", out)
	}
	if !strings.Contains(out, "> ") || !strings.Contains(out, "3. Gamma") {
		t.Errorf("active session should be marked:\n%s", out)
	}
	if !strings.Contains(out, "first question") {
		t.Errorf("preview missing:\n%s", out)
	}

	if got := formatSessionMenu(nil, "", 80); !strings.Contains(got, "No sessions") {
		t.Errorf("empty menu = %q", got)
	}
}

func TestFormatStatus(t *testing.T) {
	st := app.State{Sessions: sampleSessions(), Messages: []model.Message{{}, {}}}
	st.Model.CurrentModelID = "llama3:8b"
	st.Model.StatusText = "pulling 42%"
	st.Model.LoadProgressPercent = 42

	out := formatStatus(st)
	for _, want := range []string{"llama3:8b", "[WAIT]", "pulling 42%", "42%", "Sessions:", "3", "Messages:"} {
		if !strings.Contains(out, want) {
			t.Errorf("status missing %q:\n%s", want, out)
		}
	}

	st.Model.IsLoaded = true
	st.IsBusy = true
	out = formatStatus(st)
	if !strings.Contains(out, "[OK]") || !strings.Contains(out, "generating") {
		t.Errorf("loaded busy status:\n%s", out)
	}
}

// =============================================================================
// REPL
// =============================================================================

func chatbot(turns []engine.Turn, opts engine.Options) engine.Reply {
	if opts.MaxTokens == title.MaxTokens {
		return engine.Success{Content: "Greeting"}
	}
	return engine.Success{Content: "echo: " + turns[len(turns)-1].Content}
}

type replFixture struct {
	repl    *repl
	core    *app.App
	backend *enginetest.Backend
	out     *bytes.Buffer

	// answer is given to every confirmation; asked records the questions
	answer bool
	asked  []string
}

func newREPLFixture(t *testing.T) *replFixture {
	t.Helper()
	kv, err := storage.NewFileKV(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	backend := enginetest.NewBackend(chatbot)
	core := app.New(app.Deps{Backend: backend, KV: kv})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = core.Close(ctx)
	})
	if err := core.OnStart(context.Background()); err != nil {
		t.Fatal(err)
	}

	out := &bytes.Buffer{}
	r := newREPL(core, out, 80)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.watchLoad(ctx, nil); err != nil {
		t.Fatalf("watchLoad: %v", err)
	}
	f := &replFixture{repl: r, core: core, backend: backend, out: out, answer: true}
	r.confirm = func(question string) bool {
		f.asked = append(f.asked, question)
		return f.answer
	}
	return f
}

func (f *replFixture) run(t *testing.T, line string) (bool, error) {
	t.Helper()
	f.out.Reset()
	return f.repl.handleLine(context.Background(), line)
}

func TestREPL_WaitsForModelAndSends(t *testing.T) {
	f := newREPLFixture(t)
	if !strings.Contains(f.out.String(), "Ready") {
		t.Errorf("load output = %q", f.out.String())
	}

	cont, err := f.run(t, "hello")
	if err != nil || !cont {
		t.Fatalf("send: cont=%v err=%v", cont, err)
	}
	if !strings.Contains(f.out.String(), "echo: hello") {
		t.Errorf("reply missing:\n%s", f.out.String())
	}
	if f.repl.sent != 1 {
		t.Errorf("sent = %d, want 1", f.repl.sent)
	}
	if got := len(f.core.State().Messages); got != 2 {
		t.Errorf("messages = %d, want 2", got)
	}
}

func TestREPL_EmptyAndExit(t *testing.T) {
	f := newREPLFixture(t)

	if cont, err := f.run(t, "   "); !cont || err != nil {
		t.Errorf("blank line: cont=%v err=%v", cont, err)
	}
	if cont, _ := f.run(t, "exit"); cont {
		t.Error("exit should stop the loop")
	}
	if cont, _ := f.run(t, "/quit"); cont {
		t.Error("/quit should stop the loop")
	}
}

func TestREPL_SessionCommands(t *testing.T) {
	f := newREPLFixture(t)
	if _, err := f.run(t, "first chat"); err != nil {
		t.Fatal(err)
	}
	first := f.core.State().ActiveID

	if _, err := f.run(t, "/new"); err != nil {
		t.Fatal(err)
	}
	if f.core.State().ActiveID == first {
		t.Fatal("/new should activate a new session")
	}

	number := func(id string) string {
		for i, s := range f.core.State().Sessions {
			if s.ID == id {
				return strconv.Itoa(i + 1)
			}
		}
		t.Fatalf("session %s not found", id)
		return ""
	}

	if _, err := f.run(t, "/switch "+number(first)); err != nil {
		t.Fatal(err)
	}
	if f.core.State().ActiveID != first {
		t.Error("/switch did not activate the session")
	}
	if !strings.Contains(f.out.String(), "first chat") {
		t.Errorf("/switch should print history:\n%s", f.out.String())
	}

	if _, err := f.run(t, "/pin"); err != nil {
		t.Fatal(err)
	}
	if s, _ := f.core.Session(first); !s.IsPinned {
		t.Error("/pin should pin the active session")
	}
	if _, err := f.run(t, "/list"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(f.out.String(), "Pinned") {
		t.Errorf("/list output:\n%s", f.out.String())
	}

	if _, err := f.run(t, "/delete"); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.core.Session(first); ok {
		t.Error("/delete should remove the active session")
	}
	if len(f.asked) != 1 || f.asked[0] != confirmDeleteText {
		t.Errorf("asked = %q, want the delete question", f.asked)
	}

	if _, err := f.run(t, "/switch"); err == nil {
		t.Error("/switch without an argument should fail")
	}
	if _, err := f.run(t, "/switch 99"); err == nil {
		t.Error("/switch to a missing session should fail")
	}
	if _, err := f.run(t, "/bogus"); err == nil {
		t.Error("unknown command should fail")
	}
}

func TestREPL_ModelAndStatus(t *testing.T) {
	f := newREPLFixture(t)

	if _, err := f.run(t, "/model"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(f.out.String(), model.DefaultProModel) {
		t.Errorf("/model should list the catalog:\n%s", f.out.String())
	}

	if _, err := f.run(t, "/model pro"); err != nil {
		t.Fatal(err)
	}
	if got := f.core.State().Model.CurrentModelID; got != model.DefaultProModel {
		t.Errorf("model = %q, want %q", got, model.DefaultProModel)
	}
	if len(f.asked) != 1 || f.asked[0] != confirmSwitchText {
		t.Errorf("asked = %q, want the switch question", f.asked)
	}

	// Reloading the current model does not ask again.
	if _, err := f.run(t, "/model "+model.DefaultProModel); err != nil {
		t.Fatal(err)
	}
	if len(f.asked) != 1 {
		t.Errorf("asked %d times, want 1", len(f.asked))
	}

	if _, err := f.run(t, "/status"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(f.out.String(), model.DefaultProModel) {
		t.Errorf("/status output:\n%s", f.out.String())
	}

	if _, err := f.run(t, "/help"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(f.out.String(), "/switch <n>") {
		t.Errorf("/help output:\n%s", f.out.String())
	}
}

func TestREPL_DeclinedConfirmations(t *testing.T) {
	f := newREPLFixture(t)
	if _, err := f.run(t, "keep this"); err != nil {
		t.Fatal(err)
	}
	id := f.core.State().ActiveID
	f.answer = false

	if _, err := f.run(t, "/delete"); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.core.Session(id); !ok {
		t.Error("declined /delete removed the session")
	}
	if !strings.Contains(f.out.String(), "[Cancelled]") {
		t.Errorf("/delete output:\n%s", f.out.String())
	}

	if _, err := f.run(t, "/model pro"); err != nil {
		t.Fatal(err)
	}
	if got := f.core.State().Model.CurrentModelID; got != model.DefaultLiteModel {
		t.Errorf("model = %q after declining, want %q", got, model.DefaultLiteModel)
	}
	if loads := f.backend.Loads(); len(loads) != 1 {
		t.Errorf("loads = %v, want only the startup load", loads)
	}
	if want := []string{confirmDeleteText, confirmSwitchText}; !slices.Equal(f.asked, want) {
		t.Errorf("asked = %q, want %q", f.asked, want)
	}
}

func TestIsYes(t *testing.T) {
	for answer, want := range map[string]bool{
		"y": true, "Y": true, " yes ": true, "YES": true,
		"": false, "n": false, "no": false, "yeah": false,
	} {
		if got := isYes(answer); got != want {
			t.Errorf("isYes(%q) = %v, want %v", answer, got, want)
		}
	}
}

func TestREPL_SendFailure(t *testing.T) {
	f := newREPLFixture(t)
	f.backend.Engine.SetRespond(enginetest.Reply(engine.Fail(errors.New("out of memory"))))

	_, err := f.run(t, "hi")
	if err == nil || !strings.Contains(err.Error(), "generation failed: out of memory") {
		t.Errorf("err = %v", err)
	}
	if f.repl.sent != 0 {
		t.Errorf("sent = %d, want 0", f.repl.sent)
	}
}

func TestREPL_WatchLoadReportsFailure(t *testing.T) {
	f := newREPLFixture(t)
	f.backend.FailNext(errors.New("no such model"))

	if _, err := f.run(t, "/model missing:latest"); err == nil {
		t.Error("failed load should be reported")
	}
}

// =============================================================================
// MODELS
// =============================================================================

func TestWriteModelTable(t *testing.T) {
	catalog := model.DefaultCatalog()
	installed := []ollama.ModelInfo{
		{Name: model.DefaultLiteModel, Size: 1300 * 1024 * 1024},
		{Name: "mistral:7b", Size: 4 * 1024 * 1024 * 1024},
	}

	var buf bytes.Buffer
	writeModelTable(&buf, catalog, installed, nil)
	out := buf.String()
	for _, want := range []string{"installed", "1.3 GiB", "not pulled", "Also installed", "mistral:7b", "4.0 GiB"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	writeModelTable(&buf, catalog, nil, errors.New("connection refused"))
	if !strings.Contains(buf.String(), "unknown") || !strings.Contains(buf.String(), "connection refused") {
		t.Errorf("unreachable table:\n%s", buf.String())
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{1300000000, "1.2 GiB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.n); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

// =============================================================================
// DOCTOR
// =============================================================================

type fakeChecker struct {
	runErr error
	models []ollama.ModelInfo
}

func (p fakeChecker) CheckRunning(context.Context) error { return p.runErr }
func (p fakeChecker) ListModels(context.Context) ([]ollama.ModelInfo, error) {
	return p.models, nil
}

func TestRunAllChecks(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Dir = t.TempDir()

	checks := runAllChecks(context.Background(), cfg, nil, fakeChecker{
		models: []ollama.ModelInfo{{Name: model.DefaultLiteModel}},
	})
	byName := map[string]*HealthCheck{}
	for _, c := range checks {
		byName[c.Name] = c
	}

	if byName["Config Valid"].Status != CheckPass {
		t.Error("config should pass")
	}
	models := byName["Catalog Models"]
	if models == nil || models.Status != CheckWarn || len(models.missing) != 1 || models.missing[0] != model.DefaultProModel {
		t.Errorf("catalog check = %+v", models)
	}
	if byName["Data Writable"].Status != CheckPass {
		t.Errorf("data check = %+v", byName["Data Writable"])
	}
	if byName["Sessions Readable"].Status != CheckPass {
		t.Errorf("sessions check = %+v", byName["Sessions Readable"])
	}

	summary := summarizeChecks(checks)
	if summary.Failed != 0 || summary.Warned != 1 || !summary.Healthy {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunAllChecks_OllamaDown(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Dir = t.TempDir()

	checks := runAllChecks(context.Background(), cfg, errors.New("bad toml"), fakeChecker{runErr: ollama.ErrNotRunning})
	for _, c := range checks {
		if c.Name == "Catalog Models" {
			t.Error("model check should be skipped when Ollama is down")
		}
	}
	summary := summarizeChecks(checks)
	if summary.Failed != 2 || summary.Healthy {
		t.Errorf("summary = %+v", summary)
	}

	var buf bytes.Buffer
	if err := writeDoctorJSON(&buf, checks, summary); err != nil {
		t.Fatal(err)
	}
	var resp struct {
		Success bool       `json:"success"`
		Error   *string    `json:"error"`
		Data    DoctorData `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if resp.Success || resp.Error == nil || len(resp.Data.Checks) != len(checks) {
		t.Errorf("response = %+v", resp)
	}
	if resp.Data.Checks[1].Status != "fail" || resp.Data.Checks[1].Fix == "" {
		t.Errorf("ollama check = %+v", resp.Data.Checks[1])
	}
}

func TestCheckSessionsReadable_Corrupt(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Dir = t.TempDir()
	kv, err := storage.NewFileKV(cfg.Storage.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := kv.Put(context.Background(), cfg.Storage.Key, []byte("not json")); err != nil {
		t.Fatal(err)
	}

	if c := checkSessionsReadable(context.Background(), cfg); c.Status != CheckWarn {
		t.Errorf("corrupt data check = %+v", c)
	}
}

// =============================================================================
// CONFIG
// =============================================================================

func TestSetConfigValue(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	for _, env := range []string{"BRAINCHAT_OLLAMA_URL", "BRAINCHAT_MODEL", "BRAINCHAT_STORAGE_DRIVER",
		"BRAINCHAT_DATA_DIR", "BRAINCHAT_ADDR", "BRAINCHAT_LOG_LEVEL"} {
		t.Setenv(env, "")
	}
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := setConfigValue(path, "models.pro", "qwen2.5:7b"); err != nil {
		t.Fatal(err)
	}
	if err := setConfigValue(path, "server.allowed_origins", "http://a.test, http://b.test"); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Models.Pro != "qwen2.5:7b" {
		t.Errorf("models.pro = %q", cfg.Models.Pro)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("allowed_origins = %v", cfg.Server.AllowedOrigins)
	}

	if err := setConfigValue(path, "no.such.key", "x"); err == nil {
		t.Error("unknown key should fail")
	}
	if err := setConfigValue(path, "storage.driver", "floppy"); err == nil {
		t.Error("invalid driver should fail validation")
	}
	cfg, _ = config.LoadFromPath(path)
	if cfg.Storage.Driver != storage.DriverFile {
		t.Errorf("failed set should not be saved, driver = %q", cfg.Storage.Driver)
	}
}

func TestFormatConfigValue(t *testing.T) {
	if got := formatConfigValue([]string{"a", "b"}); got != "a,b" {
		t.Errorf("slice = %q", got)
	}
	if got := formatConfigValue(""); got != `""` {
		t.Errorf("empty = %q", got)
	}
	if got := formatConfigValue(20); got != "20" {
		t.Errorf("int = %q", got)
	}
}

// =============================================================================
// OFFLINE SESSIONS
// =============================================================================

func TestOfflineSessions_PinAndDelete(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	openAdapter := func() *storage.Adapter {
		kv, err := storage.NewFileKV(dir)
		if err != nil {
			t.Fatal(err)
		}
		return storage.NewAdapter(kv, "", nil)
	}

	seed := sampleSessions()
	for i := range seed {
		seed[i].Messages = append(seed[i].Messages, model.NewUserMessage("msg "+seed[i].Title))
	}
	if err := openAdapter().Save(ctx, seed); err != nil {
		t.Fatal(err)
	}

	st, err := loadOfflineSessions(ctx, openAdapter())
	if err != nil {
		t.Fatal(err)
	}
	s, err := st.resolve("1")
	if err != nil {
		t.Fatal(err)
	}
	st.store.TogglePin(s.ID)
	st.store.DeleteSession("bbb333")
	if err := st.save(ctx); err != nil {
		t.Fatal(err)
	}

	reloaded, err := loadOfflineSessions(ctx, openAdapter())
	if err != nil {
		t.Fatal(err)
	}
	sessions := reloaded.store.Snapshot().Sessions
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
	got, _ := reloaded.store.Get(s.ID)
	if !got.IsPinned {
		t.Error("pin was not persisted")
	}
}

func TestOfflineSessions_CorruptDataIsAnError(t *testing.T) {
	dir := t.TempDir()
	kv, err := storage.NewFileKV(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := kv.Put(context.Background(), storage.DefaultKey, []byte("{")); err != nil {
		t.Fatal(err)
	}

	_, err = loadOfflineSessions(context.Background(), storage.NewAdapter(kv, "", nil))
	var perr *storage.ParseError
	if !errors.As(err, &perr) {
		t.Errorf("err = %v, want *storage.ParseError", err)
	}
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "brainchat "+Version) {
		t.Errorf("version output = %q", buf.String())
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	want := []string{"chat", "tui", "serve", "sessions", "models", "config", "doctor", "version"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered (err=%v)", name, err)
		}
	}
}

func TestJSONResponse(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONResponse("sessions list", []string{"a"}).Print(&buf); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["success"] != true || decoded["error"] != nil || decoded["command"] != "sessions list" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestRenderStatus(t *testing.T) {
	tests := map[string]string{
		"ready":   "[OK]",
		"Loaded":  "[OK]",
		"loading": "[WAIT]",
		"failed":  "[FAIL]",
		"idle":    "[IDLE]",
	}
	for status, want := range tests {
		if got := RenderStatus(status); got != want {
			t.Errorf("RenderStatus(%q) = %q, want %q", status, got, want)
		}
	}
}

func TestApplyReload(t *testing.T) {
	logLevelArg = ""
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)

	cfg := config.Default()
	cfg.Log.Level = "debug"
	applyReload(zap.NewNop(), level, cfg, nil)
	if level.Level() != zapcore.DebugLevel {
		t.Errorf("level = %v, want debug", level.Level())
	}

	applyReload(zap.NewNop(), level, nil, errors.New("bad file"))
	if level.Level() != zapcore.DebugLevel {
		t.Errorf("failed reload changed level to %v", level.Level())
	}

	logLevelArg = "error"
	defer func() { logLevelArg = "" }()
	cfg.Log.Level = "warn"
	applyReload(zap.NewNop(), level, cfg, nil)
	if level.Level() != zapcore.DebugLevel {
		t.Errorf("--log-level should pin the level, got %v", level.Level())
	}
}

func TestClampWidth(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultTerminalWidth},
		{-1, DefaultTerminalWidth},
		{20, MinTerminalWidth},
		{120, 120},
	}
	for _, tt := range tests {
		if got := clampWidth(tt.in); got != tt.want {
			t.Errorf("clampWidth(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestWantColors(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}
	tests := []struct {
		name string
		vars map[string]string
		tty  bool
		want bool
	}{
		{"tty", nil, true, true},
		{"pipe", nil, false, false},
		{"no color wins", map[string]string{"NO_COLOR": "1", "FORCE_COLOR": "1"}, true, false},
		{"forced on pipe", map[string]string{"FORCE_COLOR": "1"}, false, true},
	}
	for _, tt := range tests {
		if got := wantColors(env(tt.vars), tt.tty); got != tt.want {
			t.Errorf("%s: wantColors = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTTYRequiredError(t *testing.T) {
	err := error(&TTYRequiredError{Command: "chat"})
	if !strings.Contains(err.Error(), "brainchat chat needs an interactive terminal") {
		t.Errorf("Error() = %q", err.Error())
	}
	var target *TTYRequiredError
	if !errors.As(err, &target) || target.Command != "chat" {
		t.Error("errors.As failed")
	}
}
