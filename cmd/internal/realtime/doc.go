// Package realtime keeps the client's push sockets: the per-user
// notification stream and per-room chat streams.
//
// A Channel is opened with the current access token and closed when the
// token goes away. Socket failures close the channel and surface as a local
// "disconnected" event; reconnecting is always an explicit Reopen (the Hub
// issues one when the session changes), never a retry loop.
package realtime
