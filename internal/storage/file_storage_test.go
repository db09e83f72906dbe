package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	errpkg "github.com/veranemoloko/bulk-downloader/internal/errors"
)

func TestFileStorage_CreateAndCommit(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStorage(dir)

	f, err := fs.CreatePart("nested/dir/test.bin")
	if err != nil {
		t.Fatalf("CreatePart error: %v", err)
	}
	if _, err := f.Write([]byte("hello world")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	f.Close()

	if _, err := fs.Size("nested/dir/test.bin"); err == nil {
		t.Errorf("artifact must not exist before commit")
	}
	if got := fs.PartSize("nested/dir/test.bin"); got != 11 {
		t.Errorf("expected part size 11, got %d", got)
	}

	if err := fs.Commit("nested/dir/test.bin"); err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	if _, err := os.Stat(fs.PartPath("nested/dir/test.bin")); !os.IsNotExist(err) {
		t.Errorf("expected part file to be gone after commit, stat err: %v", err)
	}

	size, err := fs.Size("nested/dir/test.bin")
	if err != nil {
		t.Fatalf("Size error: %v", err)
	}
	if size != 11 {
		t.Errorf("expected size 11, got %d", size)
	}
}

func TestFileStorage_AppendPart(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	f, err := fs.CreatePart("append.txt")
	if err != nil {
		t.Fatalf("CreatePart error: %v", err)
	}
	f.Write([]byte("part1"))
	f.Close()

	f, err = fs.AppendPart("append.txt")
	if err != nil {
		t.Fatalf("AppendPart error: %v", err)
	}
	if _, err := f.Write([]byte("part2")); err != nil {
		t.Fatalf("append write error: %v", err)
	}
	f.Close()

	content, err := os.ReadFile(fs.PartPath("append.txt"))
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if string(content) != "part1part2" {
		t.Errorf("expected 'part1part2', got %q", string(content))
	}
}

func TestFileStorage_Remove(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStorage(dir)

	if err := os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.pdf.part"), []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := fs.Remove("a.pdf"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, err := fs.Size("a.pdf"); err == nil || fs.PartSize("a.pdf") != 0 {
		t.Errorf("expected artifact and part file to be removed")
	}

	if err := fs.Remove("a.pdf"); err != nil {
		t.Errorf("removing a missing artifact should succeed, got %v", err)
	}
}

func TestFileStorage_ResolveAbsolute(t *testing.T) {
	fs := NewFileStorage("/data")

	if got := fs.Resolve("/tmp/x.bin"); got != "/tmp/x.bin" {
		t.Errorf("absolute destination changed: %q", got)
	}
	if got := fs.Resolve("src/x.bin"); got != filepath.Join("/data", "src", "x.bin") {
		t.Errorf("relative destination not rooted: %q", got)
	}
}

func TestFileStorage_CreatePartFilesystemError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("file, not dir"), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := NewFileStorage(dir)
	_, err := fs.CreatePart("blocker/child.bin")
	if !errors.Is(err, errpkg.ErrFilesystem) {
		t.Errorf("expected ErrFilesystem, got %v", err)
	}
}
