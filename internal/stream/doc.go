// Package stream implements the resilient WOO X streaming client.
//
// Components:
//   - Conn: one websocket plus its reconnect state machine
//     (initialising -> streaming -> reconnecting -> exiting) with jittered
//     exponential backoff and a bounded inbound Queue
//   - Registry: maps logical channel names to Conns and builds public or
//     private stream URLs for the configured application id
//   - Manager: background lifecycle owner; starts per-channel consumers,
//     answers keepalive pings, authenticates the private channel and
//     surfaces channels that exhausted their reconnect budget
//
// Delivery is at-most-once: a full queue drops the newest message.
package stream
