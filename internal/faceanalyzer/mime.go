package faceanalyzer

import "bytes"

// magicSignature maps a magic byte prefix (at a given offset) to a MIME type.
type magicSignature struct {
	offset   int
	magic    []byte
	mimeType string
}

// magicSignatures lists known image format magic bytes, checked in order.
var magicSignatures = []magicSignature{
	{0, []byte{0xFF, 0xD8, 0xFF}, "image/jpeg"},
	{0, []byte{0x89, 0x50, 0x4E, 0x47}, "image/png"},
	{0, []byte{0x47, 0x49, 0x46, 0x38}, "image/gif"},
	{0, []byte{0x52, 0x49, 0x46, 0x46}, "image/webp"}, // checked with extra WebP bytes below
}

// detectMIMEType detects the MIME type from image data using magic bytes.
func detectMIMEType(data []byte) string {
	for _, sig := range magicSignatures {
		end := sig.offset + len(sig.magic)
		if len(data) < end {
			continue
		}
		if !bytes.Equal(data[sig.offset:end], sig.magic) {
			continue
		}
		if sig.mimeType == "image/webp" {
			if len(data) < 12 || !bytes.Equal(data[8:12], []byte{0x57, 0x45, 0x42, 0x50}) {
				continue
			}
		}
		return sig.mimeType
	}
	return "application/octet-stream"
}
