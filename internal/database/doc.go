// Package database provides SQLite-based run history for linkcheck.
//
// Each finished run is stored as a row in the runs table together with its
// broken links. The history command lists past runs of a directory and
// compares the last two, so regressions show up as introduced links.
//
// The driver is modernc.org/sqlite, a CGO-free SQLite implementation; the
// database is a single file under the XDG data directory.
package database
