package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidObjectPath is returned for media references that cannot name a storage object.
var ErrInvalidObjectPath = errors.New("storage: invalid object path")

// Object identifies a Cloud Storage object.
type Object struct {
	Bucket string
	Name   string
}

// ParseObjectRef interprets a media reference stored on an archive document. "gs://bucket/path"
// names an object explicitly; any other value is an object path inside defaultBucket.
func ParseObjectRef(ref, defaultBucket string) (Object, error) {
	ref = strings.TrimSpace(ref)
	bucket := strings.TrimSpace(defaultBucket)
	name := ref
	if rest, ok := strings.CutPrefix(ref, "gs://"); ok {
		bucket, name, _ = strings.Cut(rest, "/")
	}
	if bucket == "" {
		return Object{}, fmt.Errorf("%w: no bucket for %q", ErrInvalidObjectPath, ref)
	}
	name = strings.TrimPrefix(name, "/")
	if err := validateObjectName(name); err != nil {
		return Object{}, err
	}
	return Object{Bucket: bucket, Name: name}, nil
}

func validateObjectName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: object name is required", ErrInvalidObjectPath)
	}
	if strings.Contains(name, "\\") {
		return fmt.Errorf("%w: %q contains a backslash", ErrInvalidObjectPath, name)
	}
	for _, segment := range strings.Split(name, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("%w: %q contains an empty or traversal segment", ErrInvalidObjectPath, name)
		}
	}
	return nil
}
