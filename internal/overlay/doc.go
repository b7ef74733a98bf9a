// Package overlay rasterises caption layers and thumbnails.
//
// Caption layers are transparent RGBA frames composited over each scene by
// the encoder. Text is NFC-normalised, wrapped by rune count, and drawn with
// an outline stamped from the glyph mask. The configured TrueType/OpenType
// font should cover the story's script; without it a bitmap ASCII face is
// scaled up instead.
package overlay
