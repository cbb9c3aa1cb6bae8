package store

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/minio/highwayhash"
)

// cacheKeySeed separates index cache keys from any other HighwayHash use.
var cacheKeySeed = []byte("brightpath-index-cache-key-v1\x00\x00\x00")

// IndexCache keeps persisted indexes under Dir, one subdirectory per key.
type IndexCache struct {
	Dir string
}

func NewIndexCache(dir string) *IndexCache {
	return &IndexCache{Dir: dir}
}

// Key hashes the index parameters and the raw documents the index is built from.
func (c *IndexCache) Key(params string, docs ...[]byte) (string, error) {
	h, err := highwayhash.New128(cacheKeySeed)
	if err != nil {
		return "", fmt.Errorf("failed to create hash: %w", err)
	}

	var lenBuf [8]byte
	write := func(b []byte) {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
		h.Write(lenBuf[:])
		h.Write(b)
	}

	write([]byte(params))
	for _, doc := range docs {
		write(doc)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (c *IndexCache) Path(key string) string {
	return filepath.Join(c.Dir, key)
}

// Load returns the cached index for key. found is false when nothing was cached.
func (c *IndexCache) Load(key string) (idx *MemoryStore, found bool, err error) {
	path := c.Path(key)
	if _, err := os.Stat(filepath.Join(path, indexFile)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to stat index cache: %w", err)
	}

	idx, err = LoadMemoryStore(path)
	if err != nil {
		return nil, false, err
	}
	return idx, true, nil
}

func (c *IndexCache) Save(key string, idx *MemoryStore) error {
	return idx.Save(c.Path(key))
}
