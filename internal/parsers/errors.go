package parsers

import "errors"

// ErrUnsupportedFormat indicates no parser handles the file.
var ErrUnsupportedFormat = errors.New("unsupported file format")
