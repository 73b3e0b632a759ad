// Package viz provides a terminal viewer for a running swarm.
//
// The viewer is a Bubble Tea program that renders an x-y slice of every
// grid's liquid phase as a heatmap next to the live metrics and the lens
// control outputs.
//
// # Key Bindings
//
//	Space  - Pause/Resume
//	N      - Single step while paused
//	Up/K   - Next slice depth
//	Down/J - Previous slice depth
//	I      - Inject a pulse at the centre of the slice
//	1-4    - Raise the human/predictive/systemic/harmonic lens weight
//	0      - Uniform lens weights
//	T      - Cycle color themes
//	?      - Show help overlay
//	Q      - Quit
package viz
