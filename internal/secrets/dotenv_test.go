package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(data)
}

func TestSetEntry_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	if err := SetEntry(path, "API_KEY", "secret123"); err != nil {
		t.Fatalf("SetEntry: %v", err)
	}
	if got := readFile(t, path); got != "API_KEY=secret123\n" {
		t.Errorf("content = %q", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("permissions = %o, want 0600", info.Mode().Perm())
	}
}

func TestSetEntry_UpdatesInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	initial := "# comment\nexport FOO=bar\nBAZ=qux\n"
	if err := os.WriteFile(path, []byte(initial), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := SetEntry(path, "FOO", "updated"); err != nil {
		t.Fatalf("SetEntry: %v", err)
	}
	if err := SetEntry(path, "NEW_KEY", "value with spaces"); err != nil {
		t.Fatalf("SetEntry: %v", err)
	}

	want := "# comment\nFOO=updated\nBAZ=qux\nNEW_KEY=\"value with spaces\"\n"
	if got := readFile(t, path); got != want {
		t.Errorf("content:\n got %q\nwant %q", got, want)
	}
}

func TestSetEntry_EncryptedValueUnquoted(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	k := newTestKeyring(t)
	blob, err := k.Seal("ghp_token")
	if err != nil {
		t.Fatal(err)
	}
	if err := SetEntry(path, "GITHUB_TOKEN", blob); err != nil {
		t.Fatalf("SetEntry: %v", err)
	}
	if got := readFile(t, path); !strings.HasPrefix(got, "GITHUB_TOKEN=ENC[age:") {
		t.Errorf("content = %q", got)
	}
}
