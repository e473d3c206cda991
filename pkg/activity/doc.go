/*
Package activity models how active each user is on a given simulated day.

The Data Manager calls SampleDay once per day to draw an action count
for every user; users with a positive count form the day's dispatch
pool and the count vector feeds the schedule clock.

Two models are available:

  - Poisson: each user's count is an independent Poisson draw around
    their personal mean, so heavy posters stay heavy and occasional
    posters go quiet for days at a time.
  - Markov: a two-state chain (active/inactive) per user adds day-to-day
    persistence. Active users stay active with probability StayActive,
    inactive ones wake with probability BecomeActive, and an active day
    always yields at least one action. Initial states follow the
    chain's stationary distribution so the first day is not special.

Counts are reproducible for a fixed seed.
*/
package activity
