package adapter

import "errors"

// ErrNoSymbols is returned when a dashboard request names no symbols.
var ErrNoSymbols = errors.New("adapter: no symbols requested")

// ErrTooManySymbols is returned when a request exceeds maxSymbolsPerRequest.
var ErrTooManySymbols = errors.New("adapter: too many symbols requested")
