// Package ffmpeg implements the engine contract by running the ffmpeg CLI.
//
// Video jobs encode with h264_nvenc when hardware acceleration is enabled and
// libx264 otherwise; audio jobs drop the video stream with -vn. Progress is
// read from `-progress pipe:1` and scaled against the Duration banner ffmpeg
// prints on stderr. Cancellation interrupts the process and removes the
// partial output file.
package ffmpeg
