// Package dilepton pairs the two leading leptons of an event and
// classifies the pair.
//
// Responsibilities: the Dilepton record (pT-ordered constituents, summed
// four-momentum, flavour code, opposite-flavour / same-sign / Z-window
// flags, event header), the Classifier holding the selection constants,
// and GetDilepton, which composes lepton extraction with pairing.
//
// Dependency rule: dilepton may depend on objects and lower packages.
// No storage code is allowed in this package.
package dilepton
