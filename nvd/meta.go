package nvd

import "strings"

// Meta holds the fields of a feed's .meta document. NVD publishes at least
// sha256 and size; any other keys are carried through untouched.
type Meta map[string]string

// ParseMeta parses a .meta document: CRLF-separated lines, one key:value
// pair per line, split on the first colon so colons inside values survive.
// A line without a colon keeps the whole line as both key and value, which
// is what the feed format has always produced for such lines.
func ParseMeta(text string) Meta {
	meta := Meta{}
	for _, line := range strings.Split(text, "\r\n") {
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			value = line
		}
		meta[key] = value
	}
	return meta
}
