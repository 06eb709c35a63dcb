package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"patternguard/internal/lang"
)

// Directories that never contain project-authored source.
var skipDirs = map[string]bool{
	".git":          true,
	".hg":           true,
	".svn":          true,
	".patternguard": true,
	".next":         true,
	".venv":         true,
	"node_modules":  true,
	"vendor":        true,
	"dist":          true,
	"build":         true,
	"coverage":      true,
	"__pycache__":   true,
	"target":        true,
}

// Entry files in priority order. The first one present becomes the
// project's entry point in the metadata.
var entryCandidates = []string{
	"src/index.ts",
	"src/index.js",
	"src/main.ts",
	"src/app.ts",
	"src/server.ts",
	"server.js",
	"server.ts",
	"app.js",
	"app.ts",
	"index.js",
	"index.ts",
	"main.go",
	"cmd/main.go",
	"app.py",
	"main.py",
	"manage.py",
}

type discovered struct {
	files    []string // relative to root, sorted
	warnings []string
}

func compileExcludes(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func excluded(rel string, globs []glob.Glob) bool {
	for _, g := range globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// discover walks root and returns the relative paths of candidate source
// files. Unreadable subtrees are recorded as warnings, not errors.
func discover(root string, opts Options) (*discovered, error) {
	globs, err := compileExcludes(opts.Exclude)
	if err != nil {
		return nil, err
	}

	supported := make(map[string]bool)
	for _, ext := range lang.Extensions() {
		supported[ext] = true
	}

	d := &discovered{}
	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			d.warnings = append(d.warnings, fmt.Sprintf("skipping unreadable path %s: %v", path, err))
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if entry.IsDir() {
			if rel == "." {
				return nil
			}
			if skipDirs[entry.Name()] || strings.HasPrefix(entry.Name(), ".") || excluded(rel, globs) {
				return filepath.SkipDir
			}
			return nil
		}

		if !supported[strings.ToLower(filepath.Ext(rel))] || excluded(rel, globs) {
			return nil
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			d.warnings = append(d.warnings, fmt.Sprintf("skipping %s: %v", rel, infoErr))
			return nil
		}
		if opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize {
			d.warnings = append(d.warnings, fmt.Sprintf("skipping %s: %d bytes exceeds size ceiling", rel, info.Size()))
			return nil
		}

		d.files = append(d.files, rel)
		if opts.MaxFiles > 0 && len(d.files) >= opts.MaxFiles {
			d.warnings = append(d.warnings, fmt.Sprintf("file ceiling of %d reached, remaining files ignored", opts.MaxFiles))
			return fs.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	// Entry files are re-added even when exclusion patterns or the file
	// ceiling scoped them out: top-level server/app/index files carry too
	// much convention signal to lose to a narrow scope.
	present := make(map[string]bool, len(d.files))
	for _, f := range d.files {
		present[f] = true
	}
	for _, candidate := range entryCandidates {
		if present[candidate] {
			continue
		}
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(candidate)))
		if err != nil || info.IsDir() {
			continue
		}
		if opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize {
			continue
		}
		d.files = append(d.files, candidate)
	}

	sort.Strings(d.files)
	return d, nil
}

// detectEntryFile returns the most likely entry point among the
// discovered files, or "" when none of the usual candidates exist.
func detectEntryFile(files []string) string {
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f] = true
	}
	for _, candidate := range entryCandidates {
		if present[candidate] {
			return candidate
		}
	}
	return ""
}
