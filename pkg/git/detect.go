// Package git detects the project a working directory belongs to.
package git

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const detectTimeout = 5 * time.Second

// Toplevel returns the root of the git work tree containing dir, or "" when
// dir is not inside a repository or git is not installed.
func Toplevel(ctx context.Context, dir string) string {
	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// ProjectName names the project of dir: the base name of its repository
// root, falling back to the base name of dir itself.
func ProjectName(ctx context.Context, dir string) string {
	if top := Toplevel(ctx, dir); top != "" {
		return filepath.Base(top)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	return filepath.Base(abs)
}
