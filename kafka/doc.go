// Package kafka adapts Kafka topics to the pipekit dataflow interfaces.
//
// A Source wraps a kafka-go Reader as a flow.StreamSource, so a fitting
// can pull a topic into a pipe under the reconnect supervisor. A Sink
// wraps a kafka-go Writer as a flow.Destination, so a transfer can push a
// pipe's items out to a topic with the usual put budget.
//
// Recoverable classifies broker and transport failures worth reconnecting
// for, matching the patterns kafka-go surfaces as strings.
package kafka
