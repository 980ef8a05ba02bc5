// Package mqtt provides the broker transport and topic routing for PlantOps Core.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────┐
//	│                         Router                             │
//	│                                                            │
//	│  Handle("devices/+/telemetry", ingest.HandleMessage)       │
//	│  Handle("devices/+/heartbeat", liveness.HandleMessage)     │
//	│                                                            │
//	│  receive loop ── match first pattern ── invoke handler     │
//	│       │                                                    │
//	│       └── connection lost ── backoff ── reconnect ──       │
//	│                              re-subscribe ── resume        │
//	└──────────────────────┬─────────────────────────────────────┘
//	                       │ Transport interface
//	              ┌────────┴────────┐
//	              │  PahoTransport  │  (paho.mqtt.golang)
//	              └─────────────────┘
//
// # Key Types
//
//   - Router: ordered pattern registry plus the single receive loop
//   - Transport: broker session abstraction (paho in production, fake in tests)
//   - Match: pure topic filter matching ("+" and trailing "#")
//
// # Reconnection
//
// Paho's built-in auto-reconnect is disabled. The Router owns the policy:
// on connection loss it waits an exponentially increasing delay (doubling
// from the configured seed, capped at the configured ceiling), reconnects,
// re-subscribes every registered pattern and resumes the loop. This repeats
// until shutdown; transport errors never reach handler code.
//
// # Ordering
//
// Handlers run synchronously from the receive loop, one message at a time.
// Messages within a single subscription are therefore processed in arrival
// order, which is what lets telemetry ingestion rely on most-recent-wins
// semantics without additional locking.
package mqtt
