package resources

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// MappedFile is a read-only view of a file's bytes.
type MappedFile struct {
	Path string
	Data []byte
	mmap mmap.MMap
}

// MapFile maps path into memory read-only. Empty files cannot be mapped and
// come back with a nil Data.
func MapFile(path string) (*MappedFile, error) {
	handle, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer handle.Close()
	stat, err := handle.Stat()
	if err != nil {
		return nil, err
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	mapped := &MappedFile{Path: path}
	if stat.Size() == 0 {
		return mapped, nil
	}
	fileMmap, mmapErr := mmap.Map(handle, mmap.RDONLY, 0)
	if mmapErr != nil {
		return nil, fmt.Errorf("error trying to mmap %s: %w", path, mmapErr)
	}
	mapped.mmap = fileMmap
	mapped.Data = fileMmap
	return mapped, nil
}

// Unmap releases the mapping; Data must not be used afterwards.
func (mapped *MappedFile) Unmap() error {
	if mapped.mmap == nil {
		return nil
	}
	err := mapped.mmap.Unmap()
	mapped.mmap = nil
	mapped.Data = nil
	return err
}
