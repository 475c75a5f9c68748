package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()

	// Test non-existent file
	if Exists(filepath.Join(tmpDir, "nonexistent")) {
		t.Error("Exists returned true for non-existent file")
	}

	// Test existing file
	path := filepath.Join(tmpDir, "exists.txt")
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatal(err)
	}
	if !Exists(path) {
		t.Error("Exists returned false for existing file")
	}
}

func TestIsNonEmpty(t *testing.T) {
	tmpDir := t.TempDir()

	// Test non-existent file
	if IsNonEmpty(filepath.Join(tmpDir, "nonexistent")) {
		t.Error("IsNonEmpty returned true for non-existent file")
	}

	// Test empty file
	emptyPath := filepath.Join(tmpDir, "empty.txt")
	if err := os.WriteFile(emptyPath, []byte{}, 0644); err != nil {
		t.Fatal(err)
	}
	if IsNonEmpty(emptyPath) {
		t.Error("IsNonEmpty returned true for empty file")
	}

	// Test non-empty file
	nonEmptyPath := filepath.Join(tmpDir, "nonempty.txt")
	if err := os.WriteFile(nonEmptyPath, []byte("content"), 0644); err != nil {
		t.Fatal(err)
	}
	if !IsNonEmpty(nonEmptyPath) {
		t.Error("IsNonEmpty returned false for non-empty file")
	}
}

func TestWriteTmpThenMove(t *testing.T) {
	tmpDir := t.TempDir()
	outDir := t.TempDir()
	outPath := filepath.Join(outDir, "output.txt")

	// Test successful write
	content := []byte("test content")
	err := WriteTmpThenMove(tmpDir, outPath, func(tmpPath string) error {
		return os.WriteFile(tmpPath, content, 0644)
	})
	if err != nil {
		t.Fatalf("WriteTmpThenMove failed: %v", err)
	}

	// Verify output file exists with correct content
	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("Content mismatch: got %q, want %q", got, content)
	}

	// Verify tmp file doesn't exist
	tmpPath := filepath.Join(tmpDir, "output.txt.tmp")
	if Exists(tmpPath) {
		t.Error("Tmp file still exists after successful write")
	}
}

func TestWriteTmpThenMoveError(t *testing.T) {
	tmpDir := t.TempDir()
	outDir := t.TempDir()
	outPath := filepath.Join(outDir, "output.txt")

	// Test write function error
	err := WriteTmpThenMove(tmpDir, outPath, func(tmpPath string) error {
		return os.ErrPermission
	})
	if err == nil {
		t.Error("WriteTmpThenMove should have failed")
	}

	// Verify tmp file doesn't exist (cleaned up)
	tmpPath := filepath.Join(tmpDir, "output.txt.tmp")
	if Exists(tmpPath) {
		t.Error("Tmp file exists after failed write")
	}

	// Verify output file doesn't exist
	if Exists(outPath) {
		t.Error("Output file exists after failed write")
	}
}

func TestCleanupTmpFiles(t *testing.T) {
	tmpDir := t.TempDir()

	// Create some .tmp files and regular files
	tmpFile1 := filepath.Join(tmpDir, "file1.tmp")
	tmpFile2 := filepath.Join(tmpDir, "subdir", "file2.tmp")
	regularFile := filepath.Join(tmpDir, "regular.txt")

	if err := os.MkdirAll(filepath.Join(tmpDir, "subdir"), 0755); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{tmpFile1, tmpFile2, regularFile} {
		if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if err := CleanupTmpFiles(tmpDir); err != nil {
		t.Fatalf("CleanupTmpFiles failed: %v", err)
	}

	// Verify .tmp files are removed
	if Exists(tmpFile1) {
		t.Error("tmpFile1 still exists")
	}
	if Exists(tmpFile2) {
		t.Error("tmpFile2 still exists")
	}

	// Verify regular file still exists
	if !Exists(regularFile) {
		t.Error("regularFile was removed")
	}
}

func TestWriteTmpThenMoveReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "ledger.csv")
	if err := os.WriteFile(outPath, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	// A stale tmp file from a crashed run must not leak into the result.
	if err := os.WriteFile(outPath+TmpSuffix, []byte("stale-partial"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := WriteFileAtomic(outPath, []byte("new")); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Errorf("content = %q, want %q", got, "new")
	}
	if Exists(outPath + TmpSuffix) {
		t.Error("tmp file left behind")
	}
}

func TestWriteTmpThenMoveFailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "ledger.csv")
	if err := os.WriteFile(outPath, []byte("original"), 0644); err != nil {
		t.Fatal(err)
	}

	err := WriteTmpThenMove(dir, outPath, func(tmpPath string) error {
		if err := os.WriteFile(tmpPath, []byte("partial"), 0644); err != nil {
			return err
		}
		return os.ErrClosed
	})
	if err == nil {
		t.Fatal("expected error")
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "original" {
		t.Errorf("content = %q, want original content preserved", got)
	}
}
