package job

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strings"
)

// WatchURL is the canonical source URL of a playlist entry.
const WatchURL = "https://www.youtube.com/watch?v="

// urlKey is the stable per-source suffix of downloaded artifacts.
func urlKey(source string) string {
	sum := md5.Sum([]byte(source))
	return hex.EncodeToString(sum[:])
}

// artifactName joins sanitized parts with dots: title.key[.ext...].
func artifactName(parts ...string) string {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ".")
}

// downloadLink is the public URL of an artifact in the downloads directory.
func downloadLink(base, name string) string {
	return strings.TrimRight(base, "/") + "/downloads/" + url.PathEscape(name)
}
