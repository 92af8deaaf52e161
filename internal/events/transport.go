package events

import "time"

// HTTPStart is emitted when the server receives a GraphQL HTTP request. The
// publishing context carries the request id.
type HTTPStart struct {
	Method     string
	Path       string
	RemoteAddr string
}

// HTTPFinish is emitted after the response has been written.
type HTTPFinish struct {
	Method   string
	Path     string
	Status   int
	Duration time.Duration
}

// SocketOpen is emitted when a websocket connection is upgraded.
type SocketOpen struct {
	RemoteAddr string
	Protocol   string
}

// SocketClose is emitted when a websocket connection ends. Err is nil for a
// clean close.
type SocketClose struct {
	RemoteAddr    string
	Subscriptions int
	Duration      time.Duration
	Err           error
}
