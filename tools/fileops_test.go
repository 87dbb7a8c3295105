package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func args(t *testing.T, m map[string]any) string {
	t.Helper()
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := readFile(context.Background(), args(t, map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("readFile failed: %v", err)
	}
	if got != "hello world" {
		t.Errorf("content = %q, want hello world", got)
	}
}

func TestReadFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.txt")
	if _, err := readFile(context.Background(), args(t, map[string]any{"path": path})); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWriteFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "out.txt")

	msg, err := writeFile(context.Background(), args(t, map[string]any{"path": path, "content": "data"}))
	if err != nil {
		t.Fatalf("writeFile failed: %v", err)
	}
	if !strings.Contains(msg, "4 bytes") {
		t.Errorf("message = %q, want byte count", msg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if string(data) != "data" {
		t.Errorf("content = %q, want data", data)
	}
}

func TestEditFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "code.go")
	if err := os.WriteFile(path, []byte("const x = 1\nconst y = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := editFile(context.Background(), args(t, map[string]any{
		"path": path, "old_text": "const x = 1", "new_text": "const x = 2",
	}))
	if err != nil {
		t.Fatalf("editFile failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "const x = 2\nconst y = 1\n" {
		t.Errorf("content = %q", data)
	}
}

func TestEditFileReplacesFirstOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dup.txt")
	if err := os.WriteFile(path, []byte("same\nsame\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := editFile(context.Background(), args(t, map[string]any{
		"path": path, "old_text": "same", "new_text": "changed",
	}))
	if err != nil {
		t.Fatalf("editFile failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "changed\nsame\n" {
		t.Errorf("content = %q, want first occurrence replaced", data)
	}
}

func TestEditFileNotFound(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := editFile(context.Background(), args(t, map[string]any{
		"path": path, "old_text": "xyz", "new_text": "q",
	}))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v, want old_text not found", err)
	}
}

func TestListDirectory(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x"), 0o644)
	os.Mkdir(filepath.Join(dir, "sub"), 0o755)

	got, err := listDirectory(context.Background(), args(t, map[string]any{"path": dir}))
	if err != nil {
		t.Fatalf("listDirectory failed: %v", err)
	}
	if !strings.Contains(got, "file.txt (1 bytes)") {
		t.Errorf("output missing file entry: %q", got)
	}
	if !strings.Contains(got, "sub/") {
		t.Errorf("output missing directory entry: %q", got)
	}
}

func TestListDirectoryEmpty(t *testing.T) {
	got, err := listDirectory(context.Background(), args(t, map[string]any{"path": t.TempDir()}))
	if err != nil {
		t.Fatalf("listDirectory failed: %v", err)
	}
	if got != "(empty directory)" {
		t.Errorf("output = %q", got)
	}
}

func TestSearchFilesByPattern(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("notes"), 0o644)
	os.MkdirAll(filepath.Join(dir, ".git"), 0o755)
	os.WriteFile(filepath.Join(dir, ".git", "hidden.go"), []byte("x"), 0o644)

	got, err := searchFiles(context.Background(), args(t, map[string]any{
		"directory": dir, "pattern": "*.go",
	}))
	if err != nil {
		t.Fatalf("searchFiles failed: %v", err)
	}
	if !strings.Contains(got, "main.go") {
		t.Errorf("output missing main.go: %q", got)
	}
	if strings.Contains(got, "notes.txt") || strings.Contains(got, "hidden.go") {
		t.Errorf("output has unexpected matches: %q", got)
	}
}

func TestSearchFilesByContent(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("the needle is here"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.txt"), []byte("nothing"), 0o644)

	got, err := searchFiles(context.Background(), args(t, map[string]any{
		"directory": dir, "content": "needle",
	}))
	if err != nil {
		t.Fatalf("searchFiles failed: %v", err)
	}
	if !strings.Contains(got, "a.txt") || strings.Contains(got, "b.txt") {
		t.Errorf("output = %q, want only a.txt", got)
	}
}

func TestSearchFilesNoCriteria(t *testing.T) {
	if _, err := searchFiles(context.Background(), args(t, map[string]any{"directory": t.TempDir()})); err == nil {
		t.Error("expected error without pattern or content")
	}
}

func TestSearchFilesMaxResults(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		os.WriteFile(filepath.Join(dir, string(rune('a'+i))+".txt"), []byte("x"), 0o644)
	}

	got, err := searchFiles(context.Background(), args(t, map[string]any{
		"directory": dir, "pattern": "*.txt", "max_results": 2,
	}))
	if err != nil {
		t.Fatalf("searchFiles failed: %v", err)
	}
	if n := len(strings.Split(got, "\n")); n != 2 {
		t.Errorf("got %d results, want 2", n)
	}
}

func TestDeleteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	os.WriteFile(path, []byte("x"), 0o644)

	if _, err := deleteFile(context.Background(), args(t, map[string]any{"path": path})); err != nil {
		t.Fatalf("deleteFile failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file still exists")
	}
}

func TestDeleteFileRefusesDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := deleteFile(context.Background(), args(t, map[string]any{"path": dir}))
	if err == nil || !strings.Contains(err.Error(), "directory") {
		t.Errorf("err = %v, want directory refusal", err)
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "nested", "dst.txt")
	os.WriteFile(src, []byte("payload"), 0o644)

	if _, err := copyFile(context.Background(), args(t, map[string]any{
		"source": src, "destination": dst,
	})); err != nil {
		t.Fatalf("copyFile failed: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("reading destination: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("content = %q", data)
	}
}
