// Package lens fuses four named weight channels with live grid metrics into
// the per-tick control bundle that drives every PhaseGrid update.
//
// The controller is pure: Evaluate reads only its weights, its bounded
// coefficients and the metrics passed in, and every output is clamped into
// its configured range whatever the input.
package lens
