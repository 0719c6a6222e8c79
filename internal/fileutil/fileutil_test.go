package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestCopyFilePreservesContent(t *testing.T) {
	dir := t.TempDir()
	src := writeFixture(t, dir, "src.md", []byte("# packaged artifact"))
	dst := filepath.Join(dir, "dst.md")

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if string(got) != "# packaged artifact" {
		t.Fatalf("content mismatch: %q", got)
	}
}

func TestCopyFileModeSetsPermissions(t *testing.T) {
	dir := t.TempDir()
	src := writeFixture(t, dir, "src.sh", []byte("#!/bin/sh\n"))
	dst := filepath.Join(dir, "dst.sh")

	if err := CopyFileMode(src, dst, 0o755); err != nil {
		t.Fatalf("CopyFileMode failed: %v", err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat copy: %v", err)
	}
	// umask may clear some bits; only the executable bit matters here.
	if info.Mode().Perm()&0o111 == 0 {
		t.Fatalf("expected executable bits, got %o", info.Mode().Perm())
	}
}

func TestCopyFileVerifiedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := writeFixture(t, dir, "src.bin", []byte("verified artifact bytes"))
	dst := filepath.Join(dir, "dst.bin")

	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatalf("CopyFileVerified failed: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if string(got) != "verified artifact bytes" {
		t.Fatalf("content mismatch: %q", got)
	}
}

func TestCopyMissingSourceFails(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFile(filepath.Join(dir, "absent"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("CopyFile should fail for a missing source")
	}
	if err := CopyFileVerified(filepath.Join(dir, "absent"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("CopyFileVerified should fail for a missing source")
	}
}
