// Package job defines the unit of work convoy schedules.
//
// A Descriptor is an immutable value describing what to convert and how the
// output file is named. A Job is one scheduled execution of a descriptor
// against an output directory; its State moves through a small state machine
// (pending, running, then exactly one terminal state) and is mutated only by
// the runner that owns it. Everyone else observes jobs through Snapshot.
package job
