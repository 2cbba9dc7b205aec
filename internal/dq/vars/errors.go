package vars

import "errors"

// ErrExpression reports a placeholder body that could not be evaluated.
// Callers fall back to the literal placeholder text.
var ErrExpression = errors.New("expression error")
