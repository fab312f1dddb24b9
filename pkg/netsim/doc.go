// Package netsim simulates network conditions for characteristic operations.
//
// A Simulator gates operations on three independent conditions:
//
//   - Disconnected: every operation fails with a DISCONNECTED network error.
//   - PacketLoss: each operation is dropped with the given probability and
//     fails with a PACKET_LOSS network error.
//   - Latency: surviving operations are delayed on the simulator's clock.
//
// # Gate Order
//
// Apply checks disconnection first, then draws one random sample for packet
// loss, then sleeps for the latency, then runs the operation. A failed gate
// never runs the operation, so its side effects never happen.
//
// The gate is evaluated once at entry. Changing conditions while an
// operation is sleeping does not fail it retroactively.
//
// # Determinism
//
// Packet loss draws from a seeded PCG source, and latency sleeps on the
// configured clock. With a virtual clock and a fixed seed a test observes
// the same outcomes on every run.
package netsim
