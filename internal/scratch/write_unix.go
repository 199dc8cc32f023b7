//go:build !windows

package scratch

import (
	"github.com/google/renameio/v2"
)

// writeAtomic writes through a synced temp file renamed into place.
func writeAtomic(path string, data []byte) error {
	return renameio.WriteFile(path, data, 0o644)
}
