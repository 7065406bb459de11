// Package imageproc normalises screenshots before they are embedded.
//
// A processed image carries only perceptual lightness: colour sources are
// reduced to the CIE L* channel, grayscale sources keep their gray values.
// The single channel is replicated into three identical channels, resized to
// a fixed width with a Lanczos filter preserving aspect ratio and encoded as
// PNG when the source carried an alpha channel or as JPEG otherwise.
//
// Processing is pure and deterministic: the same bytes always produce the
// same output.
package imageproc
