package codec

import "errors"

// ErrIncompatible is returned when a stored (version, size) triple has no
// registered migrator; callers should treat the room as absent.
var ErrIncompatible = errors.New("state corrupted or incompatible")
