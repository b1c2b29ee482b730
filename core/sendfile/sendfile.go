//go:build linux

// Package sendfile provides an optional zero-copy path for static files:
// sendfile(2) streams the file straight from the page cache to the socket
// without a user-space copy, with TCP_CORK set for the duration of the call.
// core/httpd uses it for every static-file response on a connection that is
// not kept alive, whatever the file size; its default path, used for
// keep-alive connections, mmaps the file and writes it with writev.
package sendfile

import (
	"container/list"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// FileCache caches open file descriptors by path using LRU eviction, so a
// hot static file is not reopened on every request that uses the
// path-based SendFile entry point.
type FileCache struct {
	mu       sync.RWMutex
	cache    map[string]*cacheEntry
	lruList  *list.List
	maxFiles int
}

type cacheEntry struct {
	file    *os.File
	element *list.Element
}

// NewFileCache creates a file cache holding at most maxFiles descriptors.
func NewFileCache(maxFiles int) *FileCache {
	return &FileCache{
		cache:    make(map[string]*cacheEntry),
		lruList:  list.New(),
		maxFiles: maxFiles,
	}
}

// Get returns a cached, open *os.File for path, opening and caching it on
// first use.
func (fc *FileCache) Get(path string) (*os.File, error) {
	fc.mu.RLock()
	if entry, ok := fc.cache[path]; ok {
		fc.mu.RUnlock()
		fc.mu.Lock()
		fc.lruList.MoveToFront(entry.element)
		fc.mu.Unlock()
		return entry.file, nil
	}
	fc.mu.RUnlock()

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	element := fc.lruList.PushFront(path)
	fc.cache[path] = &cacheEntry{file: file, element: element}

	if fc.lruList.Len() > fc.maxFiles {
		oldest := fc.lruList.Back()
		if oldest != nil {
			oldPath := oldest.Value.(string)
			if oldEntry, ok := fc.cache[oldPath]; ok {
				oldEntry.file.Close()
				delete(fc.cache, oldPath)
			}
			fc.lruList.Remove(oldest)
		}
	}

	return file, nil
}

// Close closes every cached file and empties the cache.
func (fc *FileCache) Close() {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	for _, entry := range fc.cache {
		entry.file.Close()
	}
	fc.cache = make(map[string]*cacheEntry)
	fc.lruList.Init()
}

var globalFileCache = NewFileCache(1000)

// SendFile looks up filePath in the global cache (opening it on a cache
// miss) and streams count bytes from offset to connFd.
func SendFile(connFd int, filePath string, offset int64, count int) (int, error) {
	file, err := globalFileCache.Get(filePath)
	if err != nil {
		return 0, err
	}
	return SendFromFD(connFd, int(file.Fd()), offset, count)
}

// SendFromFD streams count bytes from fileFd starting at offset directly
// to connFd via sendfile(2), with TCP_CORK set before and cleared after
// (errors from setting or clearing it are ignored). connFd is expected to be
// non-blocking: SendFromFD retries EINTR internally but returns immediately
// on EAGAIN (with however many bytes it managed to send) rather than
// spinning, so a caller driven by a readiness poller can re-arm for
// writable and resume later instead of busy-waiting on this goroutine.
func SendFromFD(connFd, fileFd int, offset int64, count int) (int, error) {
	Cork(connFd)
	defer Uncork(connFd)

	written := 0
	for written < count {
		n, err := unix.Sendfile(connFd, fileFd, &offset, count-written)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return written, err
		}
		if n == 0 {
			break
		}
		written += n
	}
	return written, nil
}

// Cork sets TCP_CORK, delaying partial-frame transmission until Uncork or
// enough data accumulates to fill a segment.
func Cork(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_CORK, 1)
}

// Uncork clears TCP_CORK, flushing whatever is buffered immediately.
func Uncork(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_CORK, 0)
}

// CloseFileCache closes every descriptor held by the global file cache.
func CloseFileCache() {
	globalFileCache.Close()
}
