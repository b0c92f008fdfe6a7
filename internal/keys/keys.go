// Package keys derives cache keys from operation parameters. Keys are
// deterministic: logically identical requests always map to the same key.
package keys

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// maxPart bounds a single free-text component; longer ones are replaced by a hash.
const maxPart = 128

// AllPlatforms is used in history keys when no platform filter is given.
const AllPlatforms = "all"

var (
	fold    = cases.Fold()
	escaper = strings.NewReplacer("%", "%25", ":", "%3A")
)

// Normalize folds case, applies NFKC and collapses runs of whitespace so that
// "  Galaxy   S24 " and "galaxy s24" produce the same key.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = fold.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// part normalizes and escapes a free-text component.
func part(s string) string {
	s = escaper.Replace(Normalize(s))
	if len(s) <= maxPart {
		return s
	}
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("h%x", sum[:16])
}

// Search returns "search:<query>".
func Search(query string) string {
	return "search:" + part(query)
}

// Popular returns "popular:<limit>".
func Popular(limit int) string {
	return "popular:" + strconv.Itoa(limit)
}

// Health returns the single key used by health checks.
func Health() string {
	return "health"
}

// History returns "history:<product>:<days>:<platform|all>".
func History(product string, periodDays int, platform string) string {
	p := part(platform)
	if p == "" {
		p = AllPlatforms
	}
	return "history:" + part(product) + ":" + strconv.Itoa(periodDays) + ":" + p
}
