package livecontext

import (
	"context"
	"fmt"
	"os"

	"github.com/bizmatters/zerotouch-keys/internal/fsutil"
)

// FileInjector keeps the key in a local key file, for example the
// SOPS_AGE_KEY_FILE of a workstation or a mounted volume.
type FileInjector struct {
	path string
}

// NewFileInjector creates a FileInjector writing to path.
func NewFileInjector(path string) *FileInjector {
	return &FileInjector{path: path}
}

func (f *FileInjector) Describe(env string) string {
	return "file:" + f.path
}

func (f *FileInjector) Current(ctx context.Context, env string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	return data, true, nil
}

func (f *FileInjector) Inject(ctx context.Context, env string, key []byte) error {
	return fsutil.WriteFileAtomic(f.path, key, 0o600)
}
