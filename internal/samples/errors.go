package samples

import "errors"

// ErrWrite — не удалось записать реплику на диск.
var ErrWrite = errors.New("write sample")
