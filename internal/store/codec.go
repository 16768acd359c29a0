package store

import (
	"encoding/binary"
	"math"
	"time"
)

// encodeEmbedding serializes a float32 vector to a little-endian byte blob
// for storage in a BLOB column. SQLite has no native vector type, so the
// embedding is opaque to the database itself, exactly as the data model
// requires.
func encodeEmbedding(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func decodeEmbedding(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func nowUnix() int64 {
	return time.Now().Unix()
}
