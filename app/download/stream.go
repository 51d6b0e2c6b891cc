package download

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// hashingReader wraps an io.Reader, accumulating sha256 and byte count
// in-flight so a transfer needs no second pass over the file.
type hashingReader struct {
	r    io.Reader
	h    hash.Hash
	size int64
}

func newHashingReader(r io.Reader) *hashingReader {
	return &hashingReader{r: r, h: sha256.New()}
}

func (r *hashingReader) Read(p []byte) (n int, err error) {
	n, err = r.r.Read(p)
	if n > 0 {
		r.h.Write(p[:n])
		r.size += int64(n)
	}
	return
}

func (r *hashingReader) SHA256() string {
	return hex.EncodeToString(r.h.Sum(nil))
}

func (r *hashingReader) Size() int64 { return r.size }
