package drivers

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when no file is stored under the key.
var ErrNotFound = errors.New("file not found")

// ErrInvalidKey is returned for keys that could escape the storage root.
var ErrInvalidKey = errors.New("invalid storage key")

func checkKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
