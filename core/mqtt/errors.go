package mqtt

import "errors"

// ErrPublish is returned once every publish attempt for a summary failed.
var ErrPublish = errors.New("mqtt publish failed")
