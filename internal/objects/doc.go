// Package objects builds reconstructed-particle records from event tuples.
//
// Responsibilities: the PhysicsObject record (fixed kinematic core plus an
// open map of auxiliary branches), four-momentum construction, and the
// lepton and jet extractors that turn per-event arrays into records.
//
// Dependency rule: objects may depend on lorentz, tuple, config and
// monitoring. Pairing and classification live in internal/dilepton.
package objects
