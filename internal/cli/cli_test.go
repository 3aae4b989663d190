package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := execute(); err != nil {
		t.Fatalf("ordkv %s failed: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestRawCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "raw.db")

	run(t, "raw", "put", "--db", db, "user/1", "alice")
	run(t, "raw", "put", "--db", db, "user/2", "bob")
	run(t, "raw", "put", "--db", db, "zzz", "last")

	if got := run(t, "raw", "get", "--db", db, "user/2"); got != "bob\n" {
		t.Errorf("get = %q, wanted %q", got, "bob\n")
	}
	if got := run(t, "raw", "prev", "--db", db, "user/3"); got != "user/2\tbob\n" {
		t.Errorf("prev = %q", got)
	}
	if got := run(t, "raw", "scan", "--db", db, "user/"); got != "user/1\talice\nuser/2\tbob\n" {
		t.Errorf("scan = %q", got)
	}
	if got := run(t, "raw", "del", "--db", db, "user/1", "user/9"); got != "1\n" {
		t.Errorf("del = %q, wanted 1", got)
	}
	if got := run(t, "raw", "scan", "--db", db); got != "user/2\tbob\nzzz\tlast\n" {
		t.Errorf("scan after del = %q", got)
	}
	run(t, "raw", "compact", "--db", db)
	run(t, "raw", "flush", "--db", db)
}

func TestFailedCommandClosesTheStore(t *testing.T) {
	db := filepath.Join(t.TempDir(), "raw.db")
	run(t, "raw", "put", "--db", db, "a", "1")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"raw", "get", "--db", db, "missing"})
	if err := execute(); err == nil {
		t.Fatalf("get of a missing key succeeded:\n%s", out.String())
	}
	if rawTable != nil {
		t.Fatalf("raw table left open after a failed command")
	}

	// bolt locks the file, so this only succeeds once the handle is closed
	if got := run(t, "raw", "get", "--db", db, "a"); got != "1\n" {
		t.Errorf("get = %q, wanted %q", got, "1\n")
	}
}

func TestRegistryList(t *testing.T) {
	db := filepath.Join(t.TempDir(), "registry.db")
	if got := run(t, "registry", "list", "--db", db); got != "" {
		t.Errorf("list of an empty registry = %q", got)
	}
}

func TestVersion(t *testing.T) {
	if got := run(t, "version"); !strings.Contains(got, Version) {
		t.Errorf("version = %q", got)
	}
}
