package audioprobe

import (
	"github.com/simonhull/audioprobe/internal/bytesource"
	"github.com/simonhull/audioprobe/internal/types"
)

// UnsupportedVariantError is an alias to types.UnsupportedVariantError.
// A recognized container whose layout cannot be played.
type UnsupportedVariantError = types.UnsupportedVariantError

// MalformedContainerError is an alias to types.MalformedContainerError.
// A container whose structure is inconsistent.
type MalformedContainerError = types.MalformedContainerError

// IOError is an alias to types.IOError, wrapping byte source failures.
type IOError = types.IOError

// Warning is an alias to types.Warning.
type Warning = types.Warning

// Byte source errors, matched with errors.Is.
var (
	ErrClosed      = bytesource.ErrClosed
	ErrNotSeekable = bytesource.ErrNotSeekable
	ErrMarkExpired = bytesource.ErrMarkExpired
)
