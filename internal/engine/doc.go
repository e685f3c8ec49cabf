// Package engine defines the contract between the job runner and a
// transcoding backend.
//
// Backends live under internal/services (ffmpeg, drapto) and are selected from
// configuration by internal/services/backend. The runner only ever sees the
// Engine interface, so tests substitute engine.Func fakes.
package engine
