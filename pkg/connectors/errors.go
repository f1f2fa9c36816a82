package connectors

import "errors"

// Connector errors. Callers distinguish failure modes with errors.Is.
var (
	// ErrConfigMissing indicates no configuration exists for the org or globally.
	ErrConfigMissing = errors.New("connector config missing")

	// ErrListChannels indicates the channel listing failed; the pass is aborted.
	ErrListChannels = errors.New("list channels failed")

	// ErrFetchMessages indicates fetching one channel's messages failed.
	ErrFetchMessages = errors.New("fetch messages failed")

	// ErrContentUnavailable indicates live content for a record could not be fetched.
	ErrContentUnavailable = errors.New("content unavailable")

	// ErrSink indicates the sink rejected the batch.
	ErrSink = errors.New("sink failed")

	// ErrUnknownConnector indicates no connector is registered under a name.
	ErrUnknownConnector = errors.New("unknown connector")
)
