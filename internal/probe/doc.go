// Package probe obtains container and stream metadata for video files.
//
// The production implementation shells out to ffprobe scoped to the first
// video stream, requesting only the fields the pipeline consumes. A probe
// never fails a run: timeouts, non-zero exits, and unparseable output all
// degrade to "no metadata", which downstream stages treat as a neutral
// signal.
package probe
