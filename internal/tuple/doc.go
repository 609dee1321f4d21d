// Package tuple defines the event-tuple source read by the object
// extractors.
//
// An Event is one row of reconstruction output: named scalar branches
// (run, event, nlep, ...) and named per-particle array branches
// (lep_pt, bjet_eta, ...). All values are exposed as float64; integer
// branches such as pdgId are converted by the caller.
//
// MapEvent is the in-memory implementation. JSONLReader streams MapEvents
// from a JSON-lines file where each line is one event object.
package tuple
