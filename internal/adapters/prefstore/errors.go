package prefstore

import "errors"

// ErrDecode is returned when the preferences file is not valid YAML.
var ErrDecode = errors.New("decode preferences")
