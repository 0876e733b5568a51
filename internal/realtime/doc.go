// package realtime subscribes to trim completion events pushed by the trimming service.
//
// The service exposes a SignalR hub. This package speaks the JSON hub protocol over the
// WebSocket transport: negotiate, handshake, keep-alive pings and automatic reconnects.
package realtime
