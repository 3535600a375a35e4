package archive

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/judgehost/pkg/jherrors"
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"gzip magic", []byte{0x1F, 0x8B, 0x00}, FormatTarGz},
		{"zip magic", []byte{0x50, 0x4B, 0x03, 0x04}, FormatZip},
		{"7z magic", []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, Format7z},
		{"unrecognized falls back to tar", []byte("hello"), FormatTar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.data); got != tt.want {
				t.Errorf("Sniff() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCreateTarGzThenExtract_RoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(srcDir, "containers", "app"), 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"config.json":                 `{"problem_id":"p1"}`,
		"containers/app/Dockerfile":    "FROM scratch\n",
	}
	for rel, content := range files {
		full := filepath.Join(srcDir, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := CreateTarGz(&buf, srcDir); err != nil {
		t.Fatalf("CreateTarGz: %v", err)
	}

	destDir := t.TempDir()
	if err := Extract(buf.Bytes(), destDir); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	for rel, want := range files {
		got, err := os.ReadFile(filepath.Join(destDir, rel))
		if err != nil {
			t.Fatalf("reading extracted %s: %v", rel, err)
		}
		if string(got) != want {
			t.Errorf("%s: got %q, want %q", rel, got, want)
		}
	}
}

func TestExtract_StripsCommonTopDirectory(t *testing.T) {
	srcDir := t.TempDir()
	nested := filepath.Join(srcDir, "myproblem-v2")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "config.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := CreateTarGz(&buf, srcDir); err != nil {
		t.Fatalf("CreateTarGz: %v", err)
	}

	destDir := t.TempDir()
	if err := Extract(buf.Bytes(), destDir); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if _, err := os.Stat(filepath.Join(destDir, "config.json")); err != nil {
		t.Errorf("expected stripped config.json at destination root: %v", err)
	}
}

func TestExtract_RejectsPathTraversal(t *testing.T) {
	// A second top-level entry without a directory keeps commonTarPrefix
	// from stripping anything, so "../evil" reaches safeJoin as written.
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, name := range []string{"ok.txt", "../evil"} {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: 1, Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	destDir := filepath.Join(t.TempDir(), "nested", "dest")
	err := Extract(buf.Bytes(), destDir)
	if !jherrors.Is(err, jherrors.CodeInvalidPackage) {
		t.Fatalf("expected InvalidPackage for a ../ entry, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(destDir, "..", "evil")); !os.IsNotExist(statErr) {
		t.Fatal("traversal entry was written outside destDir")
	}
}
