// Package lorentz provides the four-momentum primitive used by the object
// and dilepton layers.
//
// A Vector holds a three-momentum (gonum r3.Vec, GeV) and an energy (GeV).
// Vectors are values: Add returns a new vector and never mutates either
// operand. The zero Vector is the "not yet built" momentum of a fresh
// physics object.
package lorentz
