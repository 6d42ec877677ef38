// Package keys derives the storage keys used by the tagged cache layer.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// TokenKey is the reserved key holding a tag's version token. Token entries
// never expire; rotating the token is what invalidates the tag.
func TokenKey(tag string) string {
	return "tagversion:" + tag
}

// SortTags returns a sorted, de-duplicated copy of tags. The input is not
// mutated. Key derivation must see tags in a canonical order so the same tag
// set always yields the same physical key.
func SortTags(tags []string) []string {
	s := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		s = append(s, t)
	}
	sort.Strings(s)
	return s
}

// Tagged returns the physical key for a logical key written under the given
// sorted tags and their version tokens. The hash covers the tag names, the
// tokens in effect at derivation time, and the logical key, so rotating any
// one token changes the physical key of every entry that carried that tag.
func Tagged(sortedTags, tokens []string, logicalKey string) string {
	h := sha256.New()
	for i, t := range sortedTags {
		h.Write([]byte(t))
		h.Write([]byte{0})
		h.Write([]byte(tokens[i]))
		h.Write([]byte{0})
	}
	h.Write([]byte(logicalKey))
	sum := h.Sum(nil)
	return "tagged:" + hex.EncodeToString(sum[:16])
}

// Join builds a prefixed storage key: "<prefix>:<key>".
func Join(prefix, key string) string {
	var b strings.Builder
	b.Grow(len(prefix) + 1 + len(key))
	b.WriteString(prefix)
	b.WriteByte(':')
	b.WriteString(key)
	return b.String()
}
