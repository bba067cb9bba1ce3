package schema

import (
	"context"
	"fmt"
	"log/slog"
)

// Issue is one data-quality problem found while reading a catalog or
// stations document. Path is a JSON pointer into that document.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return i.Path + ": " + i.Message
}

// Report collects the issues of one document. Issues never abort a read:
// the offending part is skipped and the rest is kept.
type Report struct {
	Issues []Issue `json:"issues,omitempty"`
}

// Add records an issue at path.
func (r *Report) Add(path, message string) {
	r.Issues = append(r.Issues, Issue{Path: path, Message: message})
}

// Addf records a formatted issue at path.
func (r *Report) Addf(path, format string, args ...any) {
	r.Add(path, fmt.Sprintf(format, args...))
}

// Merge appends the issues of other.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Issues = append(r.Issues, other.Issues...)
}

// Clean reports whether nothing was found. A nil report is clean.
func (r *Report) Clean() bool {
	return r == nil || len(r.Issues) == 0
}

// Log writes one warning per issue under msg.
func (r *Report) Log(ctx context.Context, logger *slog.Logger, msg string) {
	if r == nil || logger == nil {
		return
	}
	for _, i := range r.Issues {
		logger.WarnContext(ctx, msg, "path", i.Path, "issue", i.Message)
	}
}
