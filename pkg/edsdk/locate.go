package edsdk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrLibraryNotFound is returned by Locate when no candidate exists.
var ErrLibraryNotFound = errors.New("EDSDK library not found")

// LibraryName is the platform file name of the SDK.
func LibraryName() string {
	switch runtime.GOOS {
	case "windows":
		return "EDSDK.dll"
	case "darwin":
		return filepath.Join("EDSDK.framework", "EDSDK")
	default:
		return "libEDSDK.so"
	}
}

func librarySubdir() string {
	if runtime.GOOS == "darwin" {
		return filepath.Join("EDSDK", "Framework")
	}
	return filepath.Join("EDSDK", "Dll")
}

// Locate resolves the path of the SDK library. explicit wins when set: it
// may be the library itself or a directory containing it. Otherwise dirs
// are searched in order, then the executable's directory (including the
// installer's _up_ layout and up to five parents), then the working
// directory.
func Locate(explicit string, dirs ...string) (string, error) {
	name := LibraryName()
	sub := librarySubdir()

	var candidates []string
	add := func(dir string) {
		candidates = append(candidates,
			filepath.Join(dir, sub, name),
			filepath.Join(dir, name),
		)
	}

	if explicit != "" {
		if fi, err := os.Stat(explicit); err == nil && !fi.IsDir() {
			return explicit, nil
		}
		add(explicit)
	}
	for _, d := range dirs {
		if d != "" {
			add(d)
		}
	}

	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		add(dir)
		candidates = append(candidates, filepath.Join(dir, "_up_", sub, name))
		for i := 0; i < 5; i++ {
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
			add(dir)
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		add(cwd)
	}

	for _, c := range candidates {
		if fi, err := os.Stat(c); err == nil && !fi.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w (searched %s)", ErrLibraryNotFound, strings.Join(dedupe(candidates), ", "))
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
