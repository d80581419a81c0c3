// Command dupelens scans media libraries for duplicate videos. It contains
// no detection logic of its own: flag parsing, config loading, and result
// rendering wrap the engine in internal/pipeline.
package main
