package backend

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip Create(%s): %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip Write(%s): %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip Close: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestUnpackArchiveDetectsByContentNotExtension(t *testing.T) {
	dir := t.TempDir()
	// A real ZIP byte stream saved with a misleading .tar.gz name.
	archivePath := filepath.Join(dir, "plugin.tar.gz")
	writeZip(t, archivePath, map[string]string{"config.json": `{"input_directory":"/in","output_directory":"/out"}`})

	dst := filepath.Join(dir, "unpacked")
	if err := unpackArchive(archivePath, dst); err != nil {
		t.Fatalf("unpackArchive: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dst, "config.json"))
	if err != nil {
		t.Fatalf("reading unpacked config.json: %v", err)
	}
	if string(data) != `{"input_directory":"/in","output_directory":"/out"}` {
		t.Errorf("config.json content = %q", data)
	}
}

func TestUnpackArchiveUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugin.zip")
	if err := os.WriteFile(path, []byte("not an archive at all"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := unpackArchive(path, filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected an error unpacking a non-archive file")
	}
}

func TestSanitizeReplacesSpaces(t *testing.T) {
	if got := Sanitize("my step label"); got != "my_step_label" {
		t.Errorf("Sanitize = %q, want %q", got, "my_step_label")
	}
}

func TestBasename(t *testing.T) {
	tests := map[string]string{
		"http://repo/d.zip":          "d.zip",
		"http://repo/path/to/a.tar":  "a.tar",
		"http://repo/f.bin?x=1#frag": "f.bin",
	}
	for url, want := range tests {
		if got := basename(url); got != want {
			t.Errorf("basename(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestCopyTreeCreatesDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.MkdirAll(filepath.Join(src, "nested"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "nested", "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	dst := filepath.Join(dir, "dst")
	if err := copyTree(src, dst); err != nil {
		t.Fatalf("copyTree: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dst, "nested", "a.txt"))
	if err != nil {
		t.Fatalf("reading copied file: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("copied content = %q, want %q", data, "hello")
	}
}

func TestDryRunImplementsBackendWithoutSideEffects(t *testing.T) {
	dir := t.TempDir()
	d := NewDryRun(nil)
	ctx := context.Background()

	if err := d.SetupWorkspace(ctx, dir); err != nil {
		t.Fatalf("SetupWorkspace: %v", err)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Error("DryRun.SetupWorkspace must not touch the filesystem")
	}

	path, err := d.FinalizeOutput(ctx, filepath.Join(dir, "outputs"), filepath.Join(dir, "results"), "my var")
	if err != nil {
		t.Fatalf("FinalizeOutput: %v", err)
	}
	want := filepath.Join(dir, "results", "my_var")
	if path != want {
		t.Errorf("FinalizeOutput path = %q, want %q", path, want)
	}
}
