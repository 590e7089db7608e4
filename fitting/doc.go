// Package fitting binds a source, an optional handler, and a destination
// into one named, restartable background dataflow.
//
// A Fitting owns nothing but the connecting task: pipes and streams are
// created by the caller and stay valid across restarts. Start hands the
// connecting task to a fresh task.Manager; Stop cancels it and waits for
// the transfer loop's drain to finish. Because the manager is replaced on
// every Start, a stopped fitting can be started again.
//
// Fittings implement component.Component, so a topology of fittings and
// the adapters feeding them can be wired into a Group and started and
// stopped in dependency order.
package fitting
