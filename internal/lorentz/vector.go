package lorentz

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// largeEta is returned by Eta for vectors along the beam axis.
const largeEta = 10e10

// Vector is a relativistic energy-momentum four-vector.
type Vector struct {
	P r3.Vec  // momentum (px, py, pz)
	E float64 // energy
}

// FromPtEtaPhiM builds a vector from transverse momentum, pseudorapidity,
// azimuth and invariant mass. A negative pt is taken by magnitude.
func FromPtEtaPhiM(pt, eta, phi, m float64) Vector {
	pt = math.Abs(pt)
	p := r3.Vec{
		X: pt * math.Cos(phi),
		Y: pt * math.Sin(phi),
		Z: pt * math.Sinh(eta),
	}
	var e float64
	if m >= 0 {
		e = math.Sqrt(r3.Norm2(p) + m*m)
	} else {
		e = math.Sqrt(math.Max(r3.Norm2(p)-m*m, 0))
	}
	return Vector{P: p, E: e}
}

// Add returns the vector sum v + o.
func (v Vector) Add(o Vector) Vector {
	return Vector{P: r3.Add(v.P, o.P), E: v.E + o.E}
}

// IsZero reports whether every component is zero.
func (v Vector) IsZero() bool {
	return v.E == 0 && v.P == (r3.Vec{})
}

// M2 returns the squared invariant mass E² - |p|².
func (v Vector) M2() float64 {
	return v.E*v.E - r3.Norm2(v.P)
}

// M returns the invariant mass. Space-like vectors return -sqrt(-M2).
func (v Vector) M() float64 {
	m2 := v.M2()
	if m2 < 0 {
		return -math.Sqrt(-m2)
	}
	return math.Sqrt(m2)
}

// Pt returns the transverse momentum.
func (v Vector) Pt() float64 {
	return math.Hypot(v.P.X, v.P.Y)
}

// Eta returns the pseudorapidity. Vectors with no transverse component
// return ±10e10 (0 for the null vector).
func (v Vector) Eta() float64 {
	pt := v.Pt()
	if pt == 0 {
		switch {
		case v.P.Z > 0:
			return largeEta
		case v.P.Z < 0:
			return -largeEta
		default:
			return 0
		}
	}
	return math.Asinh(v.P.Z / pt)
}

// Phi returns the azimuthal angle in (-π, π].
func (v Vector) Phi() float64 {
	if v.P.X == 0 && v.P.Y == 0 {
		return 0
	}
	return math.Atan2(v.P.Y, v.P.X)
}

// Rapidity returns 0.5·ln((E+pz)/(E-pz)).
func (v Vector) Rapidity() float64 {
	return 0.5 * math.Log((v.E+v.P.Z)/(v.E-v.P.Z))
}

// DeltaPhi returns φ(v) - φ(o) wrapped into [-π, π).
func (v Vector) DeltaPhi(o Vector) float64 {
	return WrapPhi(v.Phi() - o.Phi())
}

// DeltaR returns the η-φ distance between v and o.
func (v Vector) DeltaR(o Vector) float64 {
	return math.Hypot(v.Eta()-o.Eta(), v.DeltaPhi(o))
}

// String formats the vector in (pt, eta, phi, m) form.
func (v Vector) String() string {
	return fmt.Sprintf("(pt=%.3f, eta=%.3f, phi=%.3f, m=%.4f)", v.Pt(), v.Eta(), v.Phi(), v.M())
}

// WrapPhi maps an angle into [-π, π).
func WrapPhi(phi float64) float64 {
	phi = math.Mod(phi+math.Pi, 2*math.Pi)
	if phi < 0 {
		phi += 2 * math.Pi
	}
	return phi - math.Pi
}
