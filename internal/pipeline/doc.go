// Package pipeline runs the phases of a link checking run in sequence.
//
// Each phase of the link graph (discovery, source scan, target
// materialization, fragment backfill) and the final validation is a Step.
// A Pipeline executes its steps in order against one model.Run and stops at
// the first failure unless configured otherwise.
//
// BatchProcessor checks several document trees concurrently, one fresh
// pipeline per tree, with concurrency bounded by errgroup.
package pipeline
