// Package fpcache persists computed file signals in an append-only,
// newline-delimited JSON log keyed by file identity (path, size, mtime).
//
// Every write appends one complete, self-contained record; on load the
// newest record per identity wins field-wise, so a reader never observes a
// partially written entry. Loading is best-effort: malformed lines are
// skipped and a missing or unreadable log degrades to an empty cache.
package fpcache
