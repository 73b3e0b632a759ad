// Package lattice provides the shared primitives of the phase cube engine.
//
// The package defines the geometry and buffers every other component builds on:
//
//   - [Topology]: N×N×N toroidal cube with a cached 6-neighbour arena
//   - [Field]: one float64 per cell, owned by a single component
//   - [View]: read-only window onto a Field handed to collaborators
//   - [Source]: injectable random source threaded through stochastic code
//
// # Indexing
//
// Cells are addressed as i = x + y·N + z·N². Neighbour slots are ordered
// +x, −x, +y, −y, +z, −z.
//
//	topo, _ := lattice.NewTopology(8)
//	for _, j := range topo.Neighbors6(topo.Index(0, 0, 0)) {
//	    _ = j // wraps to x=7, y=7 and z=7 on the negative side
//	}
//
// # Ownership
//
// A Topology's arena is only mutated through [Topology.Rewire]. Fields are
// exposed to other components as [View] values so that a step never writes
// to a buffer it does not own.
package lattice
