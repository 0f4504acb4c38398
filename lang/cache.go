package lang

import (
	"io"
	"sync"

	"github.com/klauspost/readahead"
	"github.com/spf13/afero"
	"github.com/zeebo/xxh3"
)

// ScanCache memoizes scanned files across extractions. Scanning depends
// only on file content, never on the include path that reached the file, so
// entries are keyed by a content hash and shared between goroutines.
type ScanCache struct {
	entries sync.Map // xxh3 of source -> *fileScan
}

// NewScanCache returns an empty cache.
func NewScanCache() *ScanCache {
	return &ScanCache{}
}

// scan returns the scan of src, computing and storing it on first use.
// file names the source in diagnostics only.
func (c *ScanCache) scan(file string, src []byte) (*fileScan, error) {
	if c == nil {
		return scanSource(file, src)
	}

	key := xxh3.Hash(src)

	if cached, ok := c.entries.Load(key); ok {
		return cached.(*fileScan), nil
	}

	scan, err := scanSource(file, src)
	if err != nil {
		return nil, err
	}

	cached, _ := c.entries.LoadOrStore(key, scan)

	return cached.(*fileScan), nil
}

// Len returns the number of cached scans.
func (c *ScanCache) Len() int {
	if c == nil {
		return 0
	}

	n := 0
	c.entries.Range(func(any, any) bool {
		n++

		return true
	})

	return n
}

// readFile reads path from fsys through a readahead pipeline.
func readFile(fsys afero.Fs, path string) ([]byte, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, ErrReadInput.Wrap(err)
	}
	defer f.Close()

	ra := readahead.NewReader(f)
	defer ra.Close()

	data, err := io.ReadAll(ra)
	if err != nil {
		return nil, ErrReadInput.Wrap(err)
	}

	return data, nil
}
