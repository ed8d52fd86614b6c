package directory

import (
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/argon2"
)

const (
	digestTime    = 1
	digestMemory  = 64 * 1024
	digestThreads = 4
	digestKeyLen  = 32
)

// Digester derives the fixed-length hex password digest stored on a room.
// The salt is a service-wide constant from config, not per-room: the digest
// must be deterministic so verification is a recompute-and-compare.
type Digester struct {
	salt []byte
}

func NewDigester(salt string) *Digester {
	return &Digester{salt: []byte(salt)}
}

func (d *Digester) Digest(plaintext string) string {
	key := argon2.IDKey([]byte(plaintext), d.salt, digestTime, digestMemory, digestThreads, digestKeyLen)
	return hex.EncodeToString(key)
}

func (d *Digester) Verify(plaintext, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(d.Digest(plaintext)), []byte(digest)) == 1
}
