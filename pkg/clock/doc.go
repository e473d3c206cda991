/*
Package clock produces simulation timestamps for every message in a run.

Timestamps are measured in days and are monotonically non-decreasing
across the whole run. The Data Manager holds the only reference to the
clock and stamps messages the moment workers return them, so a message's
time reflects when the network absorbed it, not when the worker computed
it.

Two interchangeable variants implement the Clock interface:

# Rate Variant

Rate draws an inter-event gap per call from a log-normal distribution
whose mean is pinned to 1/(n_users · puda), the expected gap for a
population of n_users acting puda times per day. Two modulations mimic
real traffic:

  - circadian: gaps shrink around midday and stretch overnight, with
    the multiplier normalized to mean 1 over a 24-hour cycle
  - spikes: with small probability the clock enters a short regime
    that bursts (divides) or delays (multiplies) gaps by a factor
    drawn from a configured range

NextTime returns the pre-advance value, so the first timestamp of a
run is exactly 0.

# Schedule Variant

Schedule receives the population's per-user action counts at the start
of each simulated day and materializes that many timestamps at once,
inverse-CDF sampled from a circadian density (two Gaussian peaks over a
uniform baseline) and sorted. NextTime deals them out in order.

Day handoff rules:

  - StartNewDay queues while a day is in progress; the queued day
    begins automatically when the current one empties
  - an exhausted day with nothing queued yields fallback timestamps
    pinned just inside the day boundary, each strictly greater than
    the last, so the clock stays total and monotone no matter how
    irregular the pipeline's demand is

# Usage

	c := clock.NewRate(clock.RateConfig{
		NUsers:            1000,
		ActionsPerUserDay: 12,
		Circadian:         true,
		SpikeProbability:  0.001,
		Seed:              seed,
	})

	msg.Time = c.NextTime()

or, day-driven:

	s := clock.NewSchedule(clock.ScheduleConfig{Seed: seed})
	s.StartNewDay(dailyCounts)
	msg.Time = s.NextTime()

Neither variant is safe for concurrent use; both are total and never
block.
*/
package clock
