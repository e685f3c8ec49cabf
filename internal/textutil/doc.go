// Package textutil provides filename sanitization helpers.
//
// Titles typed by users end up as output file names, so they are stripped of
// characters that no mainstream filesystem accepts and normalized to NFC so the
// same title always produces the same bytes on disk.
package textutil
