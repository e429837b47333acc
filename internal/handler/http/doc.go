// Package http exposes a sync session over HTTP.
//
// Clients read the session status, follow delivered change events as a
// server-sent event stream, push optimistic changes to the other tabs and
// log the session in or out with a bearer token. When the process also acts
// as the cross-tab relay, the websocket endpoint is mounted here too.
// Request tracing, access logging and panic recovery wrap every route.
package http
