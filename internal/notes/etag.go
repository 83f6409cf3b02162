package notes

import (
	"fmt"
	"regexp"
	"strconv"
)

// The wire encoding of a version is a weak entity tag embedding the integer.
// Parsing is lenient: W/"v123", "v123", v123 and bare 123 are all accepted.
var versionTagPattern = regexp.MustCompile(`(?i)v?(\d+)`)

// FormatETag renders a version as the ETag header value.
func FormatETag(version int) string {
	return fmt.Sprintf(`W/"v%d"`, version)
}

// ParseVersionTag extracts the version from an entity-tag style string.
func ParseVersionTag(raw string) (int, bool) {
	m := versionTagPattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}
