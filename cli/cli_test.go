package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deemkeen/formgate/db"
	"github.com/deemkeen/formgate/util"
)

// mockSession implements cli.Session for testing
type mockSession struct {
	reader io.Reader
	writer *bytes.Buffer
}

func newMockSession(input string) *mockSession {
	return &mockSession{
		reader: strings.NewReader(input),
		writer: &bytes.Buffer{},
	}
}

func (m *mockSession) Write(p []byte) (n int, err error) {
	return m.writer.Write(p)
}

func (m *mockSession) Read(p []byte) (n int, err error) {
	return m.reader.Read(p)
}

// newTestStore opens a JSON store, seeded with a secret and attempts when given
func newTestStore(t *testing.T, attempts map[string]int) (*db.BanStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auth.json")
	if attempts != nil {
		data, err := json.Marshal(map[string]any{
			"hash":     util.HashSecret([]byte("admin:old")),
			"attempts": attempts,
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, data, 0600); err != nil {
			t.Fatal(err)
		}
	}
	store, err := db.Open(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func newTestHandler(t *testing.T, input string, store Store) (*Handler, *bytes.Buffer) {
	t.Helper()
	session := newMockSession(input)
	conf := &util.AppConfig{}
	conf.Conf.AuthAttempts = 3
	return NewHandler(session, store, conf), session.writer
}

func TestExecute_Help(t *testing.T) {
	store, _ := newTestStore(t, map[string]int{})
	handler, output := newTestHandler(t, "", store)

	if err := handler.Execute([]string{"--help"}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	result := output.String()
	for _, want := range []string{"formgate admin", "attempts", "reset", "set-secret"} {
		if !strings.Contains(result, want) {
			t.Errorf("Expected help output to contain %q, got: %s", want, result)
		}
	}
}

func TestExecute_HelpJSON(t *testing.T) {
	store, _ := newTestStore(t, map[string]int{})
	handler, output := newTestHandler(t, "", store)

	if err := handler.Execute([]string{"--help", "--json"}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var helpResp HelpResponse
	if err := json.Unmarshal(output.Bytes(), &helpResp); err != nil {
		t.Fatalf("Expected valid JSON, got error: %v, output: %s", err, output.String())
	}
	if len(helpResp.Commands) != 4 {
		t.Errorf("Expected 4 commands in help response, got %d", len(helpResp.Commands))
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	store, _ := newTestStore(t, map[string]int{})
	handler, _ := newTestHandler(t, "", store)

	err := handler.Execute([]string{"unknowncommand"})
	if err == nil {
		t.Fatal("Expected error for unknown command")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("Expected 'unknown command' error, got: %v", err)
	}
}

func TestExecute_NoCommand(t *testing.T) {
	store, _ := newTestStore(t, map[string]int{})
	handler, output := newTestHandler(t, "", store)

	if err := handler.Execute([]string{}); err != nil {
		t.Fatalf("Expected no error (should show help), got: %v", err)
	}
	if !strings.Contains(output.String(), "formgate admin") {
		t.Errorf("Expected help output when no command given, got: %s", output.String())
	}
}

func TestAttempts(t *testing.T) {
	store, _ := newTestStore(t, map[string]int{"10.0.0.1": 1, "10.0.0.2": 5, "10.0.0.3": 3})

	t.Run("text", func(t *testing.T) {
		handler, output := newTestHandler(t, "", store)
		if err := handler.Execute([]string{"attempts"}); err != nil {
			t.Fatalf("attempts failed: %v", err)
		}
		result := output.String()
		if strings.Count(result, "banned") != 2 {
			t.Errorf("Expected two banned addresses, got: %s", result)
		}
		if strings.Index(result, "10.0.0.2") > strings.Index(result, "10.0.0.1") {
			t.Errorf("Expected the busiest address first, got: %s", result)
		}
	})

	t.Run("json", func(t *testing.T) {
		handler, output := newTestHandler(t, "", store)
		if err := handler.Execute([]string{"attempts", "-j"}); err != nil {
			t.Fatalf("attempts failed: %v", err)
		}
		var resp AttemptsResponse
		if err := json.Unmarshal(output.Bytes(), &resp); err != nil {
			t.Fatalf("Expected valid JSON: %v, output: %s", err, output.String())
		}
		if resp.Count != 3 || resp.MaxAttempts != 3 {
			t.Errorf("Unexpected response %+v", resp)
		}
		want := []AttemptItem{
			{Address: "10.0.0.2", Count: 5, Banned: true},
			{Address: "10.0.0.3", Count: 3, Banned: true},
			{Address: "10.0.0.1", Count: 1, Banned: false},
		}
		for i, item := range want {
			if resp.Attempts[i] != item {
				t.Errorf("Attempt %d = %+v, want %+v", i, resp.Attempts[i], item)
			}
		}
	})

	t.Run("ban disabled", func(t *testing.T) {
		handler, output := newTestHandler(t, "", store)
		handler.conf.Conf.DisableBan = true
		if err := handler.Execute([]string{"attempts", "-j"}); err != nil {
			t.Fatalf("attempts failed: %v", err)
		}
		var resp AttemptsResponse
		if err := json.Unmarshal(output.Bytes(), &resp); err != nil {
			t.Fatalf("Expected valid JSON: %v, output: %s", err, output.String())
		}
		for _, item := range resp.Attempts {
			if item.Banned {
				t.Errorf("No address is banned while bans are off, got %+v", item)
			}
		}
	})
}

func TestAttemptsEmptyAndDisabled(t *testing.T) {
	store, _ := newTestStore(t, map[string]int{})
	handler, output := newTestHandler(t, "", store)
	if err := handler.Execute([]string{"attempts"}); err != nil {
		t.Fatalf("attempts failed: %v", err)
	}
	if !strings.Contains(output.String(), "No attempts recorded.") {
		t.Errorf("Unexpected output: %s", output.String())
	}

	missing, _ := newTestStore(t, nil)
	handler, output = newTestHandler(t, "", missing)
	if err := handler.Execute([]string{"attempts"}); err == nil {
		t.Error("Expected an error without a credential record")
	}
	if !strings.Contains(output.String(), "authentication is disabled") {
		t.Errorf("Unexpected output: %s", output.String())
	}
}

func TestReset(t *testing.T) {
	store, path := newTestStore(t, map[string]int{"10.0.0.1": 4, "10.0.0.2": 1})
	handler, output := newTestHandler(t, "", store)

	if err := handler.Execute([]string{"reset", "--json"}); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	var resp ResetResponse
	if err := json.Unmarshal(output.Bytes(), &resp); err != nil {
		t.Fatalf("Expected valid JSON: %v", err)
	}
	if resp.Cleared != 2 || resp.Status != "ok" {
		t.Errorf("Unexpected response %+v", resp)
	}

	reopened, err := db.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if len(reopened.Snapshot()) != 0 {
		t.Error("Reset was not persisted")
	}

	handler, output = newTestHandler(t, "", store)
	if err := handler.Execute([]string{"reset"}); err != nil {
		t.Fatalf("second reset failed: %v", err)
	}
	if !strings.Contains(output.String(), "No attempts to reset.") {
		t.Errorf("Unexpected output: %s", output.String())
	}
}

func TestResetMissingRecord(t *testing.T) {
	store, _ := newTestStore(t, nil)
	handler, output := newTestHandler(t, "", store)

	if err := handler.Execute([]string{"reset"}); err == nil {
		t.Error("Expected reset of a missing record to fail")
	}
	if !strings.HasPrefix(output.String(), "Error:") {
		t.Errorf("Expected an error message, got: %s", output.String())
	}
}

func TestSetSecret(t *testing.T) {
	t.Run("keeps counters", func(t *testing.T) {
		store, path := newTestStore(t, map[string]int{"10.0.0.1": 2})
		handler, _ := newTestHandler(t, "admin:new\n", store)

		if err := handler.Execute([]string{"set-secret"}); err != nil {
			t.Fatalf("set-secret failed: %v", err)
		}

		reopened, err := db.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		defer reopened.Close()
		if reopened.Hash() != util.HashSecret([]byte("admin:new")) {
			t.Error("New hash not stored")
		}
		if reopened.AttemptsFor("10.0.0.1") != 2 {
			t.Error("Counters should survive a secret change")
		}
	})

	t.Run("creates a missing record", func(t *testing.T) {
		store, path := newTestStore(t, nil)
		handler, output := newTestHandler(t, "admin:first", store)

		if err := handler.Execute([]string{"set-secret", "-j"}); err != nil {
			t.Fatalf("set-secret failed: %v", err)
		}
		var resp SecretResponse
		if err := json.Unmarshal(output.Bytes(), &resp); err != nil {
			t.Fatalf("Expected valid JSON: %v", err)
		}
		if resp.Store != path {
			t.Errorf("Expected store %s, got %s", path, resp.Store)
		}
		if store.Disabled() {
			t.Error("Store should be enabled")
		}
	})

	t.Run("rejects bad input", func(t *testing.T) {
		for _, input := range []string{"", "\n", "no-colon\n"} {
			store, _ := newTestStore(t, map[string]int{})
			handler, _ := newTestHandler(t, input, store)
			if err := handler.Execute([]string{"set-secret"}); err == nil {
				t.Errorf("Expected an error for input %q", input)
			}
		}
	})
}

func TestParseGlobalFlags(t *testing.T) {
	tests := []struct {
		name         string
		input        []string
		wantArgs     []string
		wantJSONMode bool
	}{
		{name: "no flags", input: []string{"attempts"}, wantArgs: []string{"attempts"}},
		{name: "json flag at end", input: []string{"attempts", "--json"}, wantArgs: []string{"attempts"}, wantJSONMode: true},
		{name: "json flag at start", input: []string{"--json", "reset"}, wantArgs: []string{"reset"}, wantJSONMode: true},
		{name: "short json flag", input: []string{"set-secret", "-j"}, wantArgs: []string{"set-secret"}, wantJSONMode: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotArgs, gotJSON := parseGlobalFlags(tt.input)

			if gotJSON != tt.wantJSONMode {
				t.Errorf("parseGlobalFlags() jsonMode = %v, want %v", gotJSON, tt.wantJSONMode)
			}
			if len(gotArgs) != len(tt.wantArgs) {
				t.Fatalf("parseGlobalFlags() args len = %d, want %d", len(gotArgs), len(tt.wantArgs))
			}
			for i, arg := range gotArgs {
				if arg != tt.wantArgs[i] {
					t.Errorf("parseGlobalFlags() args[%d] = %s, want %s", i, arg, tt.wantArgs[i])
				}
			}
		})
	}
}
