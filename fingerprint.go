package etag

import (
	"crypto/md5"
	"encoding/base64"
	"strings"
)

const weakPrefix = "W/"

// Fingerprint returns the strong entity-tag for body: the base64 encoded MD5
// digest without padding, wrapped in double quotes.
func Fingerprint(body []byte) string {
	sum := md5.Sum(body)
	return `"` + base64.RawStdEncoding.EncodeToString(sum[:]) + `"`
}

// stripWeak removes the weak validator marker.
// Intermediaries such as nginx mark our tag weak when they compress the body.
func stripWeak(tag string) string {
	return strings.TrimPrefix(tag, weakPrefix)
}
