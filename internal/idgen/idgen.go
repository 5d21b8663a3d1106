package idgen

import "github.com/google/uuid"

// NewFunc produces run ids; tests swap it for a fixed value
var NewFunc = func() string { return uuid.New().String() }

// RunID returns a fresh run identifier
func RunID() string { return NewFunc() }
