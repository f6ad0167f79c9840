// Package varpath implements the three-step path normalization pipeline
// every User facade applies exactly once at its boundary: ${VAR}
// substitution, tilde expansion, then mount-prefix normalization.
package varpath

import (
	"strings"

	"github.com/km0e/dv/internal/dverr"
)

// Vars is the lookup table normalize consults: at minimum "os", optionally
// "mount", "user", "HOME"/"HOMEPATH", "XDG_SESSION_TYPE", "hid".
type Vars map[string]string

// Normalize applies variable substitution, tilde expansion, and mount-prefix
// normalization in order. Roots (absolute paths after substitution)
// short-circuit steps 2 and 3.
func Normalize(path string, vars Vars) (string, error) {
	expanded, err := Expand(path, vars)
	if err != nil {
		return "", err
	}

	if isAbsolute(expanded) {
		return expanded, nil
	}

	expanded, didTilde, err := expandTilde(expanded, vars)
	if err != nil {
		return "", err
	}
	if didTilde {
		return expanded, nil
	}

	if mount, ok := vars["mount"]; ok && mount != "" {
		return joinMount(mount, expanded), nil
	}
	return expanded, nil
}

func isAbsolute(p string) bool {
	if strings.HasPrefix(p, "/") {
		return true
	}
	// Windows drive-letter root, e.g. "C:\" or "C:/".
	if len(p) >= 3 && p[1] == ':' && (p[2] == '/' || p[2] == '\\') {
		return true
	}
	return false
}

func joinMount(mount, rest string) string {
	mount = strings.TrimSuffix(mount, "/")
	if rest == "" {
		return mount
	}
	return mount + "/" + rest
}

// Expand performs a single-pass, non-backtracking scan for ${NAME} tokens,
// replacing each with vars[NAME]. Non-matching text passes through
// untouched. A deliberate hand-written scanner, not regexp — spec's design
// note calls backtracking unnecessary for this grammar.
func Expand(s string, vars Vars) (string, error) {
	var out strings.Builder
	out.Grow(len(s))

	i := 0
	for i < len(s) {
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				// Unterminated token: pass through literally, like the rest
				// of the scanner does for non-matching text.
				out.WriteString(s[i:])
				return out.String(), nil
			}
			name := s[i+2 : i+2+end]
			val, ok := vars[name]
			if !ok {
				return "", dverr.New(dverr.UnknownVariable, name)
			}
			out.WriteString(val)
			i += 2 + end + 1
			continue
		}
		out.WriteByte(s[i])
		i++
	}
	return out.String(), nil
}

// expandTilde expands a leading "~" (-> HOME) or "~/rest" (-> HOME+"/"+rest).
// Returns didExpand=false if the path doesn't start with "~".
func expandTilde(p string, vars Vars) (string, bool, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, false, nil
	}
	home, ok := vars["HOME"]
	if !ok || home == "" {
		home, ok = vars["HOMEPATH"]
	}
	if !ok || home == "" {
		return "", false, dverr.New(dverr.UnknownHome, "no HOME/HOMEPATH for user")
	}
	if p == "~" {
		return home, true, nil
	}
	return home + "/" + p[2:], true, nil
}
