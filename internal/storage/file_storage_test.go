package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	errpkg "github.com/veranemoloko/media-downloader/internal/errors"
)

func TestFileStorage_CreateAndExists(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	f, err := fs.CreateFile("test.txt")
	if err != nil {
		t.Fatalf("CreateFile error: %v", err)
	}
	f.Close()

	if !fs.FileExists("test.txt") {
		t.Errorf("expected file to exist after creation")
	}
}

func TestFileStorage_WriteAndSize(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStorage(dir)

	data := []byte("# Netscape HTTP Cookie File\n")
	if err := fs.WriteFile("cookies.txt", data, 0o600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	size, err := fs.GetFileSize("cookies.txt")
	if err != nil {
		t.Fatalf("GetFileSize error: %v", err)
	}
	if size != int64(len(data)) {
		t.Errorf("expected size %d, got %d", len(data), size)
	}

	info, err := os.Stat(filepath.Join(dir, "cookies.txt"))
	if err != nil {
		t.Fatalf("stat error: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}

func TestFileStorage_WriteFileReplaces(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	if err := fs.WriteFile("c.txt", []byte("old content"), 0o600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	if err := fs.WriteFile("c.txt", []byte("new"), 0o600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	f, err := fs.OpenFile("c.txt")
	if err != nil {
		t.Fatalf("OpenFile error: %v", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		t.Fatalf("read error: %v", err)
	}
	if buf.String() != "new" {
		t.Errorf("expected 'new', got %q", buf.String())
	}
}

func TestFileStorage_CopyFile(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStorage(dir)

	srcData := []byte("copy test content")
	n, err := fs.CopyFile(bytes.NewReader(srcData), "copied.txt")
	if err != nil {
		t.Fatalf("CopyFile error: %v", err)
	}
	if n != int64(len(srcData)) {
		t.Errorf("expected copied bytes %d, got %d", len(srcData), n)
	}

	readBack, err := os.ReadFile(filepath.Join(dir, "copied.txt"))
	if err != nil {
		t.Fatalf("failed to read copied file: %v", err)
	}
	if !bytes.Equal(readBack, srcData) {
		t.Errorf("copied content mismatch: got %q, want %q", readBack, srcData)
	}
}

func TestFileStorage_Import(t *testing.T) {
	src := filepath.Join(t.TempDir(), "My Clip-abc.mp4")
	if err := os.WriteFile(src, []byte("video"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	fs := NewFileStorage(t.TempDir())
	name, n, err := fs.Import(src)
	if err != nil {
		t.Fatalf("Import error: %v", err)
	}
	if name != "My Clip-abc.mp4" || n != 5 {
		t.Errorf("unexpected import result %q %d", name, n)
	}
	if !fs.FileExists(name) {
		t.Errorf("expected imported file to exist")
	}
}

func TestFileStorage_RejectsPathNames(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	for _, name := range []string{"", "..", "../escape.txt", "a/b.txt", `a\b.txt`} {
		if _, err := fs.OpenFile(name); !errors.Is(err, errpkg.ErrInvalidName) {
			t.Errorf("OpenFile(%q): expected ErrInvalidName, got %v", name, err)
		}
		if fs.FileExists(name) {
			t.Errorf("FileExists(%q) should be false", name)
		}
	}
}

func TestFileStorage_FileExistsFalse(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	if fs.FileExists("no_such_file.txt") {
		t.Errorf("expected FileExists to return false for non-existing file")
	}
}
