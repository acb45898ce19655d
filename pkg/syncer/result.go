package syncer

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/engram/pkg/contextdoc"
)

// ToolResult counts the sessions imported from one tool.
type ToolResult struct {
	Tool     string `json:"tool"`
	Sessions int    `json:"sessions"`
	Failed   int    `json:"failed,omitempty"`
}

// TransferResult reports a push or pull.
type TransferResult struct {
	Backend string `json:"backend"`

	// Attempted is false when the backend is local.
	Attempted bool     `json:"attempted"`
	OK        bool     `json:"ok"`
	Files     []string `json:"files,omitempty"`
	Failed    []string `json:"failed,omitempty"`
}

// Result contains statistics from a sync run.
type Result struct {
	Tools     []ToolResult        `json:"tools"`
	Facts     int                 `json:"facts"`
	Artifacts []contextdoc.Result `json:"artifacts"`
	Push      *TransferResult     `json:"push,omitempty"`
}

// Sessions is the number of sessions imported across all tools.
func (r *Result) Sessions() int {
	n := 0
	for _, t := range r.Tools {
		n += t.Sessions
	}
	return n
}

// Summary returns a human-readable summary of the sync result.
func (r *Result) Summary() string {
	var b strings.Builder
	for _, t := range r.Tools {
		fmt.Fprintf(&b, "%s: %d sessions", t.Tool, t.Sessions)
		if t.Failed > 0 {
			fmt.Fprintf(&b, " (%d failed)", t.Failed)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Imported %d sessions total, distilled %d facts, wrote %d context files",
		r.Sessions(), r.Facts, len(r.Artifacts))

	if r.Push != nil && r.Push.Attempted {
		if r.Push.OK {
			fmt.Fprintf(&b, "\nPushed %d files to %s", len(r.Push.Files), r.Push.Backend)
		} else {
			fmt.Fprintf(&b, "\nPush to %s failed: %s", r.Push.Backend, strings.Join(r.Push.Failed, ", "))
		}
	}
	return b.String()
}
