// Package drapto integrates the Drapto Go library as a convoy engine backend.
//
// Library encodes local video files into a staging directory and moves the
// result to the job's output path. Drapto's Reporter callbacks are translated
// into engine.Progress values by a small adapter. Audio-only jobs are refused
// because Drapto only produces AV1 video.
package drapto
