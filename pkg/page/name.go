package page

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

// DefaultPrefix is the file name prefix for page and merged documents.
const DefaultPrefix = "qr_codes"

var nameRegex = regexp.MustCompile(`^(.+)_(\d+)_through_(\d+)\.pdf$`)

// Name returns the document name for an identifier range:
// <prefix>_<first>_through_<last>.pdf.
func Name(prefix string, first, last int) string {
	return fmt.Sprintf("%s_%d_through_%d.pdf", prefix, first, last)
}

// ParseName recovers the prefix and identifier range from a document name
// produced by Name. Directory components are ignored.
func ParseName(name string) (prefix string, first, last int, ok bool) {
	m := nameRegex.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return "", 0, 0, false
	}
	first, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, 0, false
	}
	last, err = strconv.Atoi(m[3])
	if err != nil || last < first {
		return "", 0, 0, false
	}
	return m[1], first, last, true
}

// RecordFromPath builds a record for an existing page document. The
// identifier range is taken from the file name when it has the standard
// form and left zero otherwise.
func RecordFromPath(index int, path string) Record {
	r := Record{Index: index, Path: path, Reused: true}
	if _, first, last, ok := ParseName(path); ok {
		r.FirstID, r.LastID = first, last
	}
	return r
}
