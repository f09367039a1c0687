package modules

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// DefaultManifests are the file names that mark a directory as a module root.
var DefaultManifests = []string{"__manifest__.py", "__openerp__.py", "__terp__.py"}

// RootFinder locates the nearest enclosing module root of a path inside a
// work tree. Lookups are cached per directory.
type RootFinder struct {
	fs        afero.Fs
	cache     map[string]string
	workTree  string
	manifests []string
	mu        sync.Mutex
}

// NewRootFinder creates a finder over fs rooted at workTree. Without manifests
// the [DefaultManifests] are used.
func NewRootFinder(fs afero.Fs, workTree string, manifests ...string) *RootFinder {
	if len(manifests) == 0 {
		manifests = DefaultManifests
	}

	return &RootFinder{
		fs:        fs,
		cache:     make(map[string]string),
		workTree:  filepath.Clean(workTree),
		manifests: manifests,
	}
}

// Root returns the module root directory for path, relative to the work tree,
// walking upward from the path's own directory. The walk never leaves the work
// tree. ok is false when no enclosing directory carries a manifest.
func (f *RootFinder) Root(path string) (string, bool) {
	rel := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(rel) {
		var err error

		rel, err = filepath.Rel(f.workTree, rel)
		if err != nil {
			return "", false
		}
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.lookup(filepath.Dir(rel))
}

// Module returns the base name of the module root of path.
func (f *RootFinder) Module(path string) (string, bool) {
	root, ok := f.Root(path)
	if !ok {
		return "", false
	}

	if root == "." {
		return filepath.Base(f.workTree), true
	}

	return filepath.Base(root), true
}

func (f *RootFinder) lookup(dir string) (string, bool) {
	if root, cached := f.cache[dir]; cached {
		return root, root != ""
	}

	var root string

	switch {
	case f.isRoot(dir):
		root = dir
	case dir != ".":
		root, _ = f.lookup(filepath.Dir(dir))
	}

	f.cache[dir] = root

	return root, root != ""
}

func (f *RootFinder) isRoot(dir string) bool {
	for _, manifest := range f.manifests {
		info, err := f.fs.Stat(filepath.Join(f.workTree, dir, manifest))
		if err == nil && !info.IsDir() {
			return true
		}
	}

	return false
}
