package prometheus

import "errors"

var errFailed = errors.New("batch had failures")
