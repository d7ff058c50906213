// Package simulation runs Monte Carlo estimates of ICU bed occupancy.
//
// Each round draws one length of stay per admitted patient from a
// duration.Sampler and accumulates the resulting stays into an occupancy
// curve. Rounds use independent random streams derived from the base seed and
// the round index, so a run is reproducible regardless of how many workers
// execute it. Results aggregates the ensemble into per-day summaries and
// highest-density credible intervals.
package simulation
