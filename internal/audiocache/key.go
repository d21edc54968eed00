package audiocache

import (
	"crypto/md5"
	"encoding/hex"
)

// Key derives the content address of text: the hex MD5 digest of its UTF-8
// bytes. No normalization is applied, so casing and whitespace matter.
func Key(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
