package facematch

import (
	"strings"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// PrefixPolicy excludes usernames that start with one of a set of prefixes.
// Comparison ignores case and diacritics. The zero value excludes nothing.
type PrefixPolicy struct {
	prefixes []string
}

var _ database.Excluder = PrefixPolicy{}

// NewPrefixPolicy builds a policy from configured prefixes; blanks are ignored.
func NewPrefixPolicy(prefixes []string) PrefixPolicy {
	var p PrefixPolicy
	for _, prefix := range prefixes {
		if n := NormalizePersonName(prefix); n != "" {
			p.prefixes = append(p.prefixes, n)
		}
	}
	return p
}

// Excluded reports whether username must never be marked present.
func (p PrefixPolicy) Excluded(username string) bool {
	if len(p.prefixes) == 0 {
		return false
	}
	name := NormalizePersonName(username)
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Prefixes returns the normalized prefixes.
func (p PrefixPolicy) Prefixes() []string {
	return p.prefixes
}
