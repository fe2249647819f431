package chainclient

import "errors"

var (
	// ErrBackendTransport wraps a network or HTTP-level error talking to
	// the indexer; callers may retry.
	ErrBackendTransport = errors.New("chainclient: backend transport error")

	// ErrBackendMalformed is returned when the indexer's response is
	// internally inconsistent, e.g. a transaction whose txid does not
	// match its serialized contents.
	ErrBackendMalformed = errors.New("chainclient: backend returned malformed data")
)
