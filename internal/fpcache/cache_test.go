package fpcache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dupelens/internal/identity"
)

func testIdentity(path string) identity.FileIdentity {
	return identity.FileIdentity{Path: path, Size: 1234, ModTime: time.Unix(1700000000, 0)}
}

func openCache(t *testing.T, path string) *Cache {
	t.Helper()
	cache, err := Open(path, nil)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestLoadMissingFileIsEmptyCache(t *testing.T) {
	cache := openCache(t, filepath.Join(t.TempDir(), "fingerprints.jsonl"))
	cache.Load()
	if cache.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", cache.Len())
	}
}

func TestPutFieldRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingerprints.jsonl")
	cache := openCache(t, path)
	cache.Load()

	id := testIdentity("/videos/a.mkv")
	if err := cache.PutFullHash(id, "deadbeef"); err != nil {
		t.Fatalf("put full hash: %v", err)
	}
	if err := cache.PutSignature(id, identity.Signature{0xfeed, 0xface}); err != nil {
		t.Fatalf("put signature: %v", err)
	}

	rec, ok := cache.Get(id)
	if !ok {
		t.Fatal("expected record after put")
	}
	if digest, ok := rec.FullHash(); !ok || digest != "deadbeef" {
		t.Fatalf("full hash = %q %v", digest, ok)
	}
	sig, ok := rec.Signature()
	if !ok || len(sig) != 2 || sig[0] != 0xfeed {
		t.Fatalf("signature = %v %v", sig, ok)
	}
}

func TestLoadIsIdempotentAndMergesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingerprints.jsonl")
	id := testIdentity("/videos/a.mkv")

	writer := openCache(t, path)
	writer.Load()
	if err := writer.PutPartial(id, identity.PartialHash{Algorithm: "blake3", Head: "aa", Tail: "bb", SpanBytes: 1 << 20}); err != nil {
		t.Fatal(err)
	}
	if err := writer.PutVideo(id, identity.VideoMeta{DurationSeconds: 61.5, Width: 1920, Height: 1080}); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	reader := openCache(t, path)
	reader.Load()
	first, ok := reader.Get(id)
	if !ok {
		t.Fatal("expected merged record on reload")
	}
	if _, ok := first.Partial(); !ok {
		t.Fatal("partial hash lost across reload")
	}
	meta, ok := first.Video()
	if !ok || meta.DurationSeconds != 61.5 {
		t.Fatalf("video meta lost across reload: %+v %v", meta, ok)
	}

	// Append a new field and reload: old fields preserved, new field added.
	if err := reader.PutFullHash(id, "cafe"); err != nil {
		t.Fatal(err)
	}
	if err := reader.Close(); err != nil {
		t.Fatal(err)
	}

	again := openCache(t, path)
	again.Load()
	rec, ok := again.Get(id)
	if !ok {
		t.Fatal("expected record after second reload")
	}
	if _, ok := rec.Partial(); !ok {
		t.Fatal("earlier field dropped after new append")
	}
	if digest, ok := rec.FullHash(); !ok || digest != "cafe" {
		t.Fatalf("new field missing after reload: %q %v", digest, ok)
	}

	again.Load()
	if again.Len() != 1 {
		t.Fatalf("double load should be idempotent, got %d entries", again.Len())
	}
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fingerprints.jsonl")
	lines := strings.Join([]string{
		`{"path":"/a","size":1,"mtime_ns":5,"full_hash":"aa"}`,
		`this is not json`,
		`{"unknown_field":true}`,
		`{"path":"/b","size":2,"mtime_ns":6,"full_hash":"bb","future_field":"ignored"}`,
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}

	cache := openCache(t, path)
	cache.Load()
	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", cache.Len())
	}
}

func TestNewestRecordWinsFieldwise(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fingerprints.jsonl")
	lines := strings.Join([]string{
		`{"path":"/a","size":1,"mtime_ns":5,"full_hash":"old","partial":{"algo":"blake3","head":"h","tail":"t","span_bytes":1048576}}`,
		`{"path":"/a","size":1,"mtime_ns":5,"full_hash":"new"}`,
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}

	cache := openCache(t, path)
	cache.Load()

	rec, ok := cache.Get(identity.FileIdentity{Path: "/a", Size: 1, ModTime: time.Unix(0, 5)})
	if !ok {
		t.Fatal("expected record")
	}
	if digest, _ := rec.FullHash(); digest != "new" {
		t.Fatalf("later record should win: %q", digest)
	}
	if _, ok := rec.Partial(); !ok {
		t.Fatal("field absent from later record should be preserved")
	}
}

func TestChangedIdentityIsSeparateEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingerprints.jsonl")
	cache := openCache(t, path)
	cache.Load()

	id := testIdentity("/videos/a.mkv")
	if err := cache.PutFullHash(id, "aa"); err != nil {
		t.Fatal(err)
	}
	touched := id
	touched.ModTime = id.ModTime.Add(time.Second)
	if _, ok := cache.Get(touched); ok {
		t.Fatal("modified file must not see stale cached signals")
	}
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingerprints.jsonl")
	cache := openCache(t, path)
	cache.Load()
	if err := cache.PutFullHash(testIdentity("/a"), "aa"); err != nil {
		t.Fatal(err)
	}
	if err := cache.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cache.Len() != 0 {
		t.Fatal("expected empty cache after clear")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected log removed after clear")
	}
}
