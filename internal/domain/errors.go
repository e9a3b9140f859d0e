package domain

import "errors"

// ErrNoQuerySucceeded signals that every query variant in a retrieval batch
// failed, either at embedding generation or at the passage store. It is
// distinct from a successful retrieval that found zero documents.
var ErrNoQuerySucceeded = errors.New("no query variant produced any result")
