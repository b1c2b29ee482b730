package httpd

import (
	"path/filepath"
	"sync"
)

// suffixType is the fixed extension-to-MIME table, carried from the
// original implementation's SUFFIX_TYPE map rather than the broader
// mime.TypeByExtension table the standard library offers, so unmapped
// suffixes fall back to text/plain exactly as the original does.
var suffixType = map[string]string{
	".html":  "text/html",
	".xml":   "text/xml",
	".xhtml": "application/xhtml+xml",
	".txt":   "text/plain",
	".rtf":   "application/rtf",
	".pdf":   "application/pdf",
	".word":  "application/nsword",
	".png":   "image/png",
	".gif":   "image/gif",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".au":    "audio/basic",
	".mpeg":  "video/mpeg",
	".mpv":   "video/mpeg",
	".avi":   "video/x-msvideo",
	".gz":    "application/x-gzip",
	".tar":   "application/x-tar",
	".css":   "text/css",
	".js":    "text/javascript",
}

const mimeCacheLimit = 128

// mimeCache mirrors the original's thread-local, capped-at-128,
// clear-on-overflow lookup cache. Go has no true thread-locals so this is a
// single mutex-guarded cache shared across workers; the cap-and-clear
// behavior, not the thread-affinity, is what the spec calls out.
type mimeCache struct {
	mu      sync.Mutex
	entries map[string]string
}

var globalMIMECache = &mimeCache{entries: make(map[string]string, mimeCacheLimit)}

func (c *mimeCache) lookup(name string) string {
	ext := filepath.Ext(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if ct, ok := c.entries[ext]; ok {
		return ct
	}
	if len(c.entries) >= mimeCacheLimit {
		c.entries = make(map[string]string, mimeCacheLimit)
	}
	ct, ok := suffixType[ext]
	if !ok {
		ct = "text/plain"
	}
	c.entries[ext] = ct
	return ct
}

// contentTypeFor returns the MIME type for a file name.
func contentTypeFor(name string) string {
	return globalMIMECache.lookup(name)
}
