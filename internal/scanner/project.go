package scanner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/modfile"

	"patternguard/internal/logging"
)

// Metadata describes what kind of project the scan root holds. All of
// it is best-effort: a missing or unparsable manifest degrades to
// empty fields rather than failing the scan.
type Metadata struct {
	Language       string   `json:"language"`
	Framework      string   `json:"framework,omitempty"`
	PackageManager string   `json:"packageManager,omitempty"`
	Dependencies   []string `json:"dependencies,omitempty"`
	EntryFile      string   `json:"entryFile,omitempty"`
	Directories    []string `json:"directories,omitempty"`
}

// Framework markers looked up in the dependency list, checked in order
// so that meta-frameworks win over the servers they wrap.
var frameworkMarkers = []struct {
	dep       string
	framework string
}{
	{"next", "nextjs"},
	{"@nestjs/core", "nestjs"},
	{"fastify", "fastify"},
	{"koa", "koa"},
	{"express", "express"},
	{"django", "django"},
	{"fastapi", "fastapi"},
	{"flask", "flask"},
	{"github.com/gin-gonic/gin", "gin"},
	{"github.com/labstack/echo/v4", "echo"},
	{"github.com/go-chi/chi/v5", "chi"},
	{"actix-web", "actix"},
	{"axum", "axum"},
}

func detectMetadata(root string, files []string, logger *logging.Logger) Metadata {
	meta := Metadata{
		EntryFile:   detectEntryFile(files),
		Directories: topLevelDirs(files),
	}

	switch {
	case exists(root, "package.json"):
		meta.Language = "javascript"
		if hasTypeScript(files) || exists(root, "tsconfig.json") {
			meta.Language = "typescript"
		}
		meta.Dependencies = packageJSONDeps(root, logger)
		meta.PackageManager = nodePackageManager(root)
	case exists(root, "go.mod"):
		meta.Language = "go"
		meta.Dependencies = goModDeps(root, logger)
		meta.PackageManager = "go-modules"
	case exists(root, "pyproject.toml"):
		meta.Language = "python"
		meta.Dependencies = pyprojectDeps(root, logger)
		meta.PackageManager = pythonPackageManager(root)
	case exists(root, "requirements.txt"):
		meta.Language = "python"
		meta.Dependencies = requirementsDeps(root, logger)
		meta.PackageManager = "pip"
	case exists(root, "Cargo.toml"):
		meta.Language = "rust"
		meta.Dependencies = cargoDeps(root, logger)
		meta.PackageManager = "cargo"
	default:
		meta.Language = dominantLanguage(files)
	}

	meta.Framework = detectFramework(meta.Dependencies)
	return meta
}

func detectFramework(deps []string) string {
	set := make(map[string]bool, len(deps))
	for _, d := range deps {
		set[strings.ToLower(d)] = true
	}
	for _, m := range frameworkMarkers {
		if set[m.dep] {
			return m.framework
		}
	}
	return ""
}

func exists(root, name string) bool {
	_, err := os.Stat(filepath.Join(root, name))
	return err == nil
}

func hasTypeScript(files []string) bool {
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f))
		if ext == ".ts" || ext == ".tsx" || ext == ".mts" {
			return true
		}
	}
	return false
}

// dominantLanguage is the manifest-free fallback: count the files.
func dominantLanguage(files []string) string {
	counts := map[string]int{}
	for _, f := range files {
		switch strings.ToLower(filepath.Ext(f)) {
		case ".go":
			counts["go"]++
		case ".py":
			counts["python"]++
		case ".ts", ".tsx", ".mts":
			counts["typescript"]++
		case ".js", ".jsx", ".mjs", ".cjs":
			counts["javascript"]++
		}
	}
	best, bestN := "", 0
	for language, n := range counts {
		if n > bestN || (n == bestN && language < best) {
			best, bestN = language, n
		}
	}
	return best
}

func topLevelDirs(files []string) []string {
	set := map[string]bool{}
	for _, f := range files {
		if i := strings.IndexByte(f, '/'); i > 0 {
			set[f[:i]] = true
		}
	}
	dirs := make([]string, 0, len(set))
	for d := range set {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

func packageJSONDeps(root string, logger *logging.Logger) []string {
	raw, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return nil
	}
	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(raw, &manifest); err != nil {
		logger.Warn("failed to parse package.json", map[string]interface{}{"error": err.Error()})
		return nil
	}
	deps := make([]string, 0, len(manifest.Dependencies)+len(manifest.DevDependencies))
	for name := range manifest.Dependencies {
		deps = append(deps, name)
	}
	for name := range manifest.DevDependencies {
		deps = append(deps, name)
	}
	sort.Strings(deps)
	return deps
}

func nodePackageManager(root string) string {
	switch {
	case exists(root, "pnpm-lock.yaml"):
		return "pnpm"
	case exists(root, "yarn.lock"):
		return "yarn"
	case exists(root, "bun.lockb") || exists(root, "bun.lock"):
		return "bun"
	case exists(root, "package-lock.json"):
		return "npm"
	}
	return "npm"
}

func pythonPackageManager(root string) string {
	switch {
	case exists(root, "poetry.lock"):
		return "poetry"
	case exists(root, "uv.lock"):
		return "uv"
	case exists(root, "Pipfile.lock"):
		return "pipenv"
	}
	return "pip"
}

func goModDeps(root string, logger *logging.Logger) []string {
	raw, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return nil
	}
	mf, err := modfile.Parse("go.mod", raw, nil)
	if err != nil {
		logger.Warn("failed to parse go.mod", map[string]interface{}{"error": err.Error()})
		return nil
	}
	deps := make([]string, 0, len(mf.Require))
	for _, req := range mf.Require {
		if !req.Indirect {
			deps = append(deps, req.Mod.Path)
		}
	}
	sort.Strings(deps)
	return deps
}

func pyprojectDeps(root string, logger *logging.Logger) []string {
	raw, err := os.ReadFile(filepath.Join(root, "pyproject.toml"))
	if err != nil {
		return nil
	}
	var manifest struct {
		Project struct {
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Dependencies map[string]interface{} `toml:"dependencies"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(raw, &manifest); err != nil {
		logger.Warn("failed to parse pyproject.toml", map[string]interface{}{"error": err.Error()})
		return nil
	}
	set := map[string]bool{}
	for _, spec := range manifest.Project.Dependencies {
		set[requirementName(spec)] = true
	}
	for name := range manifest.Tool.Poetry.Dependencies {
		if name != "python" {
			set[strings.ToLower(name)] = true
		}
	}
	return sortedKeys(set)
}

func requirementsDeps(root string, logger *logging.Logger) []string {
	raw, err := os.ReadFile(filepath.Join(root, "requirements.txt"))
	if err != nil {
		return nil
	}
	set := map[string]bool{}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		set[requirementName(line)] = true
	}
	return sortedKeys(set)
}

// requirementName strips version specifiers and extras from a PEP 508
// requirement line.
func requirementName(spec string) string {
	name := strings.ToLower(strings.TrimSpace(spec))
	for _, sep := range []string{"==", ">=", "<=", "~=", "!=", ">", "<", "[", ";", " "} {
		if i := strings.Index(name, sep); i >= 0 {
			name = name[:i]
		}
	}
	return strings.TrimSpace(name)
}

func cargoDeps(root string, logger *logging.Logger) []string {
	raw, err := os.ReadFile(filepath.Join(root, "Cargo.toml"))
	if err != nil {
		return nil
	}
	var manifest struct {
		Dependencies map[string]interface{} `toml:"dependencies"`
	}
	if err := toml.Unmarshal(raw, &manifest); err != nil {
		logger.Warn("failed to parse Cargo.toml", map[string]interface{}{"error": err.Error()})
		return nil
	}
	set := map[string]bool{}
	for name := range manifest.Dependencies {
		set[strings.ToLower(name)] = true
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
