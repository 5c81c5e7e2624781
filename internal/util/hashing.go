package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// HashVector returns a digest of the exact float values of vec.
func HashVector(vec []float64) [32]byte {
	buffer := GetBytesBuffer()
	defer PutBytesBuffer(buffer)
	for i := range vec {
		if i > 0 {
			buffer.WriteByte(',')
		}
		buffer.WriteString(strconv.FormatFloat(vec[i], 'g', -1, 64))
	}
	return sha256.Sum256(buffer.Bytes())
}

// ShortHash is the first 8 bytes of HashVector, hex encoded.
func ShortHash(vec []float64) string {
	sum := HashVector(vec)
	return hex.EncodeToString(sum[:8])
}
