package models

import "sort"

// driveAlphabet is the set of direction keys the motor driver understands.
var driveAlphabet = map[string]struct{}{
	"w": {},
	"a": {},
	"s": {},
	"d": {},
}

// DriveCommand is the set of currently held direction keys. The wire form is
// a sorted, deduplicated sequence; two commands are equal iff their sorted
// key sequences match.
type DriveCommand struct {
	Keys []string `json:"keys"`
}

// NormalizeDriveKeys filters keys to the drive alphabet, deduplicates them
// and returns the sorted result.
func NormalizeDriveKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	normalized := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := driveAlphabet[k]; !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		normalized = append(normalized, k)
	}
	sort.Strings(normalized)
	return normalized
}

// Normalize returns a copy of the command with normalized keys.
func (c DriveCommand) Normalize() DriveCommand {
	return DriveCommand{Keys: NormalizeDriveKeys(c.Keys)}
}

// Equal compares two commands by their normalized key sequences.
func (c DriveCommand) Equal(other DriveCommand) bool {
	a := NormalizeDriveKeys(c.Keys)
	b := NormalizeDriveKeys(other.Keys)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
