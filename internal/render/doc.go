// Package render compiles a reconciled timeline into a single ffmpeg job
// and runs it.
//
// Compile builds a Graph (inputs, filter nodes joined by labelled streams,
// mapped outputs) and validates it before anything is serialised: every
// label must be produced once and consumed once, input references must
// exist with the right media kind, and every concatenated segment must
// carry the frame's resolution and rate. Job.Args turns the validated graph
// into the encoder argv; Executor.Run invokes it once and returns an
// *EncoderError with the captured stderr on failure.
package render
