// Package analyzer implements the participant that persists the
// simulation's output and decides when the run is over.
//
// Each forwarded pack is appended to two CSV streams: activities.csv
// takes the firehose chunks (every message once, in the order the
// Data Manager stamped it, so clock times are monotone end to end)
// and passivities.csv takes the staged views. Persistence happens
// before convergence is evaluated, so the files always contain the
// rows that justified the verdict. Either stream can be disabled in
// config; the monitor sees every pack regardless.
//
// # Convergence
//
// One criterion is active per run:
//
//   - day_count: stop once the maximum clock time on any firehose
//     message reaches the target day.
//   - sliding_window: collect message qualities into fixed-size
//     windows; stop when two consecutive window means differ by at
//     most the threshold.
//   - ema_quality: every population-sweep of user updates, fold the
//     interim mean quality into an exponential moving average
//     (rho=0.8, starting at 1); stop when the relative step falls
//     under the threshold.
//
// On convergence the analyzer broadcasts STOP to every rank and exits
// its loop; the shutdown barrier then guarantees the final CSV flush
// is on disk before the run returns.
//
// # Reporting
//
// With verbose enabled the analyzer logs interval statistics every
// print_interval activities: mean quality, mean appeal, and the
// Shannon diversity of the root-share distribution (how evenly
// reshares spread across original messages), plus overall figures
// when the run ends.
package analyzer
