// Package internal contains the thermolog service implementation.
//
// Component layout:
//   - models: the Reading value type and plausibility checks
//   - config: viper-backed configuration with compiled-in defaults
//   - clock: timestamp source with boot-relative fallback
//   - sensor: gateway interface plus iio and simulated drivers
//   - retention: the two-tier buffer pair and aggregation algorithm
//   - memguard: heap watchdog and emergency compaction
//   - alerts: per-metric threshold latch state machines
//   - storage: JSON file persistence and optional Postgres archive
//   - web: gin router, middleware chain and typed API handlers
//   - scheduler: cron-driven sampling loop, the sole buffer writer
package internal
