// Package artifacts resolves the filesystem locations of the embedded
// redis-server binary and the optional FalkorDB graph module shipped with
// the package.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"redlite/internal/common/fsutil"
)

const (
	// ServerBinaryName is the embedded server executable file name.
	ServerBinaryName = "redis-server"
	// ModuleFileName is the optional graph extension module file name.
	ModuleFileName = "falkordb.so"
)

// Paths holds the resolved artifact locations. Module is empty when the
// extension module is not shipped.
type Paths struct {
	ServerBin string
	Module    string
}

// Locator searches an ordered list of directories for the embedded
// artifacts. First hit wins.
type Locator struct {
	dirs []string
}

// NewLocator builds a Locator for the given directories. With no
// arguments the default search path is used: <exe dir>/bin, <exe dir>,
// and ./bin relative to the working directory.
func NewLocator(dirs ...string) *Locator {
	if len(dirs) == 0 {
		dirs = DefaultSearchDirs()
	}
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if expanded, err := fsutil.ExpandHome(d); err == nil {
			out = append(out, expanded)
		}
	}
	return &Locator{dirs: out}
}

// DefaultSearchDirs returns the directories probed when the caller does
// not configure one explicitly.
func DefaultSearchDirs() []string {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		dirs = append(dirs, filepath.Join(exeDir, "bin"), exeDir)
	}
	dirs = append(dirs, "bin")
	return dirs
}

// Resolve locates the server binary and, when present, the graph module.
// A missing or non-executable server binary is fatal; a missing module is
// not (Paths.Module stays empty). Module execute permission is checked
// separately right before spawning, see CheckModuleExecutable.
func (l *Locator) Resolve() (Paths, error) {
	var p Paths
	var foundNonExec string
	for _, dir := range l.dirs {
		candidate := filepath.Join(dir, ServerBinaryName)
		if !fsutil.PathExists(candidate) {
			continue
		}
		if !fsutil.IsExecutable(candidate) {
			if foundNonExec == "" {
				foundNonExec = candidate
			}
			continue
		}
		p.ServerBin = candidate
		break
	}
	if p.ServerBin == "" {
		if foundNonExec != "" {
			return Paths{}, permissionError{path: foundNonExec}
		}
		return Paths{}, artifactMissingError{name: ServerBinaryName, searched: l.dirs}
	}
	for _, dir := range l.dirs {
		candidate := filepath.Join(dir, ModuleFileName)
		if fsutil.PathExists(candidate) {
			p.Module = candidate
			break
		}
	}
	return p, nil
}

// CheckModuleExecutable verifies the module file can actually be loaded
// by the server. Modules without the execute bit are a common packaging
// failure and must be reported distinctly before any process is spawned.
func CheckModuleExecutable(path string) error {
	if path == "" {
		return nil
	}
	if !fsutil.PathExists(path) {
		return artifactMissingError{name: filepath.Base(path), searched: []string{filepath.Dir(path)}}
	}
	if !fsutil.IsExecutable(path) {
		return permissionError{path: path}
	}
	return nil
}

type artifactMissingError struct {
	name     string
	searched []string
}

func (e artifactMissingError) Error() string {
	return fmt.Sprintf("artifact not found: %s (searched: %s)", e.name, strings.Join(e.searched, ", "))
}

// IsArtifactMissing reports whether err indicates a missing embedded
// artifact (server binary or module).
func IsArtifactMissing(err error) bool {
	_, ok := err.(artifactMissingError)
	return ok
}

type permissionError struct{ path string }

func (e permissionError) Error() string {
	return fmt.Sprintf("artifact lacks execute permission: %s", e.path)
}

// IsPermissionDenied reports whether err indicates an artifact without
// execute permission.
func IsPermissionDenied(err error) bool {
	_, ok := err.(permissionError)
	return ok
}
