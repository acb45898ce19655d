package distill

import (
	"path"
	"strings"
)

// skipProjectDirs are directory names that hold projects rather than being
// one.
var skipProjectDirs = map[string]bool{
	"workspace":  true,
	"workspaces": true,
	"home":       true,
	"users":      true,
	"root":       true,
	"tmp":        true,
	"temp":       true,
	"src":        true,
	"code":       true,
	"projects":   true,
	"repos":      true,
	"dev":        true,
	"desktop":    true,
	"documents":  true,
	"downloads":  true,
	"work":       true,
	"git":        true,
	"github":     true,
	"unknown":    true,
}

// ResolveProject maps a session's project path to a project name. It
// reports false for empty paths, the home directory itself, hidden
// directories and generic roots.
func (d *Distiller) ResolveProject(projectPath string) (string, bool) {
	return resolveProject(projectPath, d.home)
}

func resolveProject(projectPath, home string) (string, bool) {
	p := normalizePath(projectPath)
	if p == "" || p == "/" || p == "." {
		return "", false
	}
	if home != "" && p == normalizePath(home) {
		return "", false
	}

	name := path.Base(p)
	if name == "" || name == "/" || name == "." || strings.HasPrefix(name, ".") {
		return "", false
	}
	if IsGenericDir(name) {
		return "", false
	}
	return name, true
}

// IsGenericDir reports whether a directory name is a generic root such as
// "workspace" or "Documents".
func IsGenericDir(name string) bool {
	return skipProjectDirs[strings.ToLower(name)]
}

func normalizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, `\`, "/"))
	if p == "" {
		return ""
	}
	return path.Clean(p)
}
