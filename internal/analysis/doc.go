// Package analysis characterizes metric traces and swarm dynamics.
//
//   - [PowerSpectrum] and [DominantPeriod]: periodicity of a metric trace
//   - [Autocorrelation]: lagged self-similarity of a trace
//   - [Sensitivity]: growth of the separation between a swarm and a copy
//     nudged by a tiny bias field
//   - [Scan]: late-time metric samples across a parameter range
//
// # Oscillation Detection
//
// Scheduled lenses and travelling waves leave a peak in the energy spectrum:
//
//	period, power := analysis.DominantPeriod(trace)
//	if period > 0 && power > 0.2 {
//	    // trace oscillates with the given period in ticks
//	}
package analysis
