// Package logging builds the *zap.Logger the engine and CLI share. The
// teacher's Options.Verbose flag gated bare fmt.Fprintf(os.Stderr, ...)
// debug lines; this package replaces that with a structured logger at
// the same two levels (quiet and verbose) the teacher's flag already
// distinguished.
package logging

import "go.uber.org/zap"

// New returns a production logger (info+ to stderr, JSON encoded) unless
// verbose is set, in which case it returns a development logger (debug+,
// human-readable console encoding) — the same two postures the teacher's
// -verbose flag chose between, just backed by zap instead of raw writes.
func New(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
