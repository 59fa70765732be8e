package daemonrun

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "tubescribe-1.log")
	second := filepath.Join(dir, "tubescribe-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("ensureCurrentLogPointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("ensureCurrentLogPointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "tubescribe.log"))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "tubescribe-2.log" {
		t.Fatalf("pointer content = %q, want second log", data)
	}
	if err := ensureCurrentLogPointer("", second); err != nil {
		t.Fatalf("empty dir should be a no-op, got %v", err)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tubescribe.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid = %q, want %d", data, os.Getpid())
	}
}

func TestBinaryAvailable(t *testing.T) {
	if binaryAvailable("  ") {
		t.Fatal("blank name should be unavailable")
	}
	if binaryAvailable("tubescribe-definitely-missing-binary") {
		t.Fatal("missing binary reported available")
	}
}
