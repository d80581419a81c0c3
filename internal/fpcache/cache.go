package fpcache

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"dupelens/internal/identity"
	"dupelens/internal/logging"
	"dupelens/internal/services"
)

// maxLineBytes bounds a single cache record. Signatures are bounded by the
// sampling maximum, so well-formed lines stay far below this.
const maxLineBytes = 4 << 20

// Cache is the persistent fingerprint store. Reads against the in-memory map
// may be concurrent; writes are serialized through a single append path.
type Cache struct {
	path   string
	logger *slog.Logger
	lock   *flock.Flock

	mu   sync.RWMutex
	mem  map[string]*identity.Record
	file *os.File
}

// Open prepares a cache backed by the given log path and takes an advisory
// lock so concurrent runs cannot interleave appends. The log file itself is
// created lazily on first write.
func Open(path string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithComponent(logger, "fpcache")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "fpcache", "open", fmt.Sprintf("create cache directory for %s", path), err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "fpcache", "open", "acquire cache lock", err)
	}

	return &Cache{
		path:   path,
		logger: logger,
		lock:   lock,
		mem:    make(map[string]*identity.Record),
	}, nil
}

// Close releases the append handle and the advisory lock.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	if c.file != nil {
		firstErr = c.file.Close()
		c.file = nil
	}
	if c.lock != nil {
		if err := c.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Load reads every record from the backing log in file order, keeping the
// most recent value of each field per identity. Loading never fails: I/O
// errors degrade to an empty cache with a warning and malformed lines are
// skipped.
func (c *Cache) Load() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem = make(map[string]*identity.Record)

	file, err := os.Open(c.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("cache unreadable, starting empty", logging.Error(err), slog.String("path", c.path))
		}
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var loaded, skipped int
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line cacheLine
		if err := json.Unmarshal(raw, &line); err != nil || line.Path == "" {
			skipped++
			continue
		}
		id := line.identity()
		rec, ok := c.mem[id.Key()]
		if !ok {
			rec = identity.NewRecord(id)
			c.mem[id.Key()] = rec
		}
		line.mergeInto(rec)
		loaded++
	}
	if err := scanner.Err(); err != nil {
		c.logger.Warn("cache truncated during load", logging.Error(err), slog.String("path", c.path))
	}
	if skipped > 0 {
		c.logger.Warn("skipped malformed cache lines", slog.Int("skipped", skipped), slog.String("path", c.path))
	}
	c.logger.Debug("cache loaded", slog.Int("records", loaded), slog.Int("entries", len(c.mem)))
}

// Get returns a copy of the record for the identity, or absent.
func (c *Cache) Get(id identity.FileIdentity) (*identity.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.mem[id.Key()]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Len returns the number of distinct identities in the cache.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.mem)
}

// Path returns the backing log location.
func (c *Cache) Path() string {
	return c.path
}

// Clear truncates the backing log and drops the in-memory map.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file != nil {
		_ = c.file.Close()
		c.file = nil
	}
	c.mem = make(map[string]*identity.Record)
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrCacheWrite, "fpcache", "clear", "remove cache log", err)
	}
	return nil
}

// PutFullHash merges the full-file digest into the identity's record and
// appends it to the log.
func (c *Cache) PutFullHash(id identity.FileIdentity, digest string) error {
	return c.putField(id,
		func(rec *identity.Record) { rec.SetFullHash(digest) },
		func(line *cacheLine) { line.FullHash = &digest },
	)
}

// PutPartial merges the partial-hash tuple into the identity's record and
// appends it to the log.
func (c *Cache) PutPartial(id identity.FileIdentity, partial identity.PartialHash) error {
	return c.putField(id,
		func(rec *identity.Record) { rec.SetPartial(partial) },
		func(line *cacheLine) { line.Partial = newPartialLine(partial) },
	)
}

// PutVideo merges probed metadata into the identity's record and appends it
// to the log.
func (c *Cache) PutVideo(id identity.FileIdentity, meta identity.VideoMeta) error {
	return c.putField(id,
		func(rec *identity.Record) { rec.SetVideo(meta) },
		func(line *cacheLine) { line.Video = newVideoLine(meta) },
	)
}

// PutSignature merges the perceptual signature into the identity's record and
// appends it to the log.
func (c *Cache) PutSignature(id identity.FileIdentity, sig identity.Signature) error {
	values := append([]uint64{}, sig...)
	return c.putField(id,
		func(rec *identity.Record) { rec.SetSignature(sig) },
		func(line *cacheLine) { line.Signature = &values },
	)
}

// putField is the only write path. The in-memory merge always happens; a
// failed append degrades to "not persisted this run" and is reported to the
// caller as a non-fatal ErrCacheWrite.
func (c *Cache) putField(id identity.FileIdentity, apply func(*identity.Record), encode func(*cacheLine)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.mem[id.Key()]
	if !ok {
		rec = identity.NewRecord(id)
		c.mem[id.Key()] = rec
	}
	apply(rec)

	line := cacheLine{Path: id.Path, Size: id.Size, MTimeNS: id.ModTime.UnixNano()}
	encode(&line)

	payload, err := json.Marshal(line)
	if err != nil {
		return services.Wrap(services.ErrCacheWrite, "fpcache", "append", "encode record", err)
	}
	payload = append(payload, '\n')

	if c.file == nil {
		file, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return services.Wrap(services.ErrCacheWrite, "fpcache", "append", "open cache log", err)
		}
		c.file = file
	}
	if _, err := c.file.Write(payload); err != nil {
		return services.Wrap(services.ErrCacheWrite, "fpcache", "append", "write record", err)
	}
	return nil
}
