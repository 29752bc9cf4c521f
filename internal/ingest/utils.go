package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/receipt-parser/constants"
)

// AllowedExt checks if a file extension is in the allowed set.
func AllowedExt(ext string) bool {
	return constants.IsAllowedExt(ext)
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// extFilter builds a matcher from an explicit list, or the default set.
func extFilter(exts []string) func(path string) bool {
	if len(exts) == 0 {
		return func(path string) bool { return AllowedExt(filepath.Ext(path)) }
	}
	set := map[string]struct{}{}
	for _, e := range exts {
		if e = constants.NormalizeExt(strings.TrimSpace(e)); e != "" {
			set[e] = struct{}{}
		}
	}
	return func(path string) bool {
		_, ok := set[constants.NormalizeExt(filepath.Ext(path))]
		return ok
	}
}
