// Package log provides the logger handle passed to simulation components.
//
// Components never reach for a process-wide logger. Each one receives a
// Logger at construction and falls back to a no-op implementation, so
// tests need no logging setup:
//
//	sim := netsim.New()                                  // silent
//	sim := netsim.New(netsim.WithLogger(log.NewLogrus(l))) // logrus
//	sim := netsim.New(netsim.WithLogger(slog.Default()))   // slog
//
// The Logger method set matches *slog.Logger, so a slog logger can be
// passed directly. Arguments after the message are alternating key/value
// pairs.
package log
