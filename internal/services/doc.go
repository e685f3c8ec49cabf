// Package services holds the helpers shared by the engine backends and the
// job runner.
//
// It provides context helpers that stamp batch IDs, epochs, job IDs and
// correlation identifiers for logging, plus the error markers and Wrap helper
// that let the runner classify engine failures and attach operator hints.
// The concrete engine backends live in the ffmpeg and drapto subpackages.
package services
