package ids

import "errors"

var errSequenceExhausted = errors.New("ids: sequence exhausted")
