package templates

import "errors"

// ErrTemplateNotFound is returned when no variant exists for a template reference.
var ErrTemplateNotFound = errors.New("template not found")
