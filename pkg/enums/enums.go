// Package enums holds the closed string sets stored in the database and
// carried on events.
package enums

import (
	"fmt"
	"slices"
)

// parse returns value as a T when it is one of valid.
func parse[T ~string](kind string, valid []T, value string) (T, error) {
	if v := T(value); slices.Contains(valid, v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
