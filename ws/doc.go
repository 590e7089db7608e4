// Package ws adapts a websocket endpoint into a flow.StreamSource.
//
// A Stream dials on Connect, optionally sends subscribe frames, and then
// serves messages through Recv until the peer closes. Normal closure maps
// to io.EOF so the transfer loop seals its destination; abnormal closures
// and network resets are classified by Recoverable, which plugs straight
// into flow.StreamConfig so the reconnect supervisor can redial.
package ws
