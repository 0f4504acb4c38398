// Package profile provides optional runtime profiling for the pyparam
// command.
//
// Profiling integrates [github.com/pkg/profile] behind the "pprof" build
// tag. Without the tag every operation is a no-op with zero overhead; with
// it, the CLI exposes --pprof-mode and --pprof-dir flags selecting one of
// the modes reported by [Modes].
//
// Profile files are written to the output directory named after the mode
// (cpu.pprof, heap.pprof, ...) for analysis with go tool pprof.
package profile

// Tag is the build tag required to enable pprof profiling.
const Tag = `pprof`
