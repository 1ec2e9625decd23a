package filtering

import "errors"

// ErrNoFilter indicates the filter table has no entry for a (game, level) pair
var ErrNoFilter = errors.New("no filter configured")
