package sqlite

import (
	"encoding/binary"
	"math"
	"strings"
)

// placeholder returns a placeholder for SQLite (uses ?)
func placeholder(n int) string {
	return "?"
}

// placeholders returns n placeholders for SQLite
func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

// appendIDList appends the ids to args and returns the matching placeholder list.
func appendIDList(args []any, ids []int32) (string, []any) {
	holders := make([]string, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
		holders = append(holders, placeholder(len(args)))
	}
	return strings.Join(holders, ", "), args
}

// encodeFloat32Slice stores a vector as little-endian float32 bytes.
func encodeFloat32Slice(values []float32) []byte {
	if len(values) == 0 {
		return nil
	}
	out := make([]byte, len(values)*4)
	for idx, value := range values {
		binary.LittleEndian.PutUint32(out[idx*4:], math.Float32bits(value))
	}
	return out
}

func decodeFloat32Slice(blob []byte) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}
	out := make([]float32, len(blob)/4)
	for idx := 0; idx < len(out); idx++ {
		bits := binary.LittleEndian.Uint32(blob[idx*4:])
		out[idx] = math.Float32frombits(bits)
	}
	return out
}
