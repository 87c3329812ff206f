package classify

import "errors"

// Sentinel errors for classifier operations.
var (
	// ErrQuotaExceeded is returned by a MappingStore that cannot hold the
	// table. The classifier keeps running in memory.
	ErrQuotaExceeded = errors.New("classify: persistence quota exceeded")

	// ErrUnknownSection is returned when learning a section missing from the
	// catalog.
	ErrUnknownSection = errors.New("classify: unknown section")

	// ErrEmptyName is returned when learning a name that normalizes to "".
	ErrEmptyName = errors.New("classify: empty item name")

	// ErrInvalidCatalog is returned for a malformed section catalog.
	ErrInvalidCatalog = errors.New("classify: invalid catalog")

	// ErrUnsupportedVersion is returned when a mapping file has an unknown
	// format version.
	ErrUnsupportedVersion = errors.New("classify: unsupported mapping file version")
)
