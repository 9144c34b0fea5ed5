package secondary

import "errors"

var (
	// ErrNotFound is wrapped by repositories when an entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStaleStatus is wrapped by compare-and-set updates when the stored
	// status no longer matches the expected one.
	ErrStaleStatus = errors.New("status changed concurrently")
)
