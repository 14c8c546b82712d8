package docstore

import (
	"fmt"
	"regexp"
	"strings"
)

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// validateCollectionPath accepts hierarchical collection paths like "users"
// or "users/<uid>/quests": an odd number of non-empty segments, since every
// even-positioned segment is a document id of the enclosing collection.
func validateCollectionPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("empty collection path")
	}
	if strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return fmt.Errorf("collection path %q must not start or end with '/'", path)
	}
	segs := strings.Split(path, "/")
	if len(segs)%2 == 0 {
		return fmt.Errorf("collection path %q has %d segments, want odd", path, len(segs))
	}
	for _, seg := range segs {
		if !segmentPattern.MatchString(seg) {
			return fmt.Errorf("collection path %q contains invalid segment %q", path, seg)
		}
	}
	return nil
}

func validateDocID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("empty document id")
	}
	if !segmentPattern.MatchString(id) {
		return fmt.Errorf("invalid document id %q", id)
	}
	return nil
}
