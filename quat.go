// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.2
//

package goins

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

//-------------------------------------------------------------------
// Quat
//-------------------------------------------------------------------

// Quat is a rotation quaternion w + xi + yj + zk.
// Rotate applies the quaternion as a rotation operator: Rotate(v) = q v q*.
type Quat struct {
	W float64
	X float64
	Y float64
	Z float64
}

func QuatIdentity() Quat {
	return Quat{W: 1}
}

func (q Quat) Mul(r Quat) Quat {
	return Quat{
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
	}
}

func (q Quat) Conj() Quat {
	return Quat{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
}

func (q Quat) Neg() Quat {
	return Quat{W: -q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
}

// Dot is the 4-coefficient dot product, used for the hemisphere test
func (q Quat) Dot(r Quat) float64 {
	return q.W*r.W + q.X*r.X + q.Y*r.Y + q.Z*r.Z
}

func (q Quat) NormSq() float64 {
	return q.Dot(q)
}

func (q Quat) Norm() float64 {
	return math.Sqrt(q.NormSq())
}

// IncNormalized divides by the current norm. The norm differs from unity
// only by O(|dq|^2) after an exp-map correction, so this stays stable.
func (q Quat) IncNormalized() Quat {
	n := 1 / q.Norm()
	return Quat{W: q.W * n, X: q.X * n, Y: q.Y * n, Z: q.Z * n}
}

func (q Quat) Rotate(v Vec3) Vec3 {
	// q v q*, expanded as v + 2w(u x v) + 2(u x (u x v)) with u = (x,y,z)
	u := Vec3{X: q.X, Y: q.Y, Z: q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// RotationMatrixTo writes the 3x3 matrix of the rotation operator into dst,
// so that dst*v == q.Rotate(v)
func (q Quat) RotationMatrixTo(dst *mat.Dense) {
	w, x, y, z := q.W, q.X, q.Y, q.Z
	dst.SetRow(0, []float64{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)})
	dst.SetRow(1, []float64{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)})
	dst.SetRow(2, []float64{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)})
}

func (q Quat) IsReal() bool {
	return isReal(q.W) && isReal(q.X) && isReal(q.Y) && isReal(q.Z)
}

func (q Quat) String() string {
	return fmt.Sprintf("%.6f %.6f %.6f %.6f", q.W, q.X, q.Y, q.Z)
}

// QuatExp maps a rotation vector to the unit quaternion rotating by |v|
// radians about v
func QuatExp(v Vec3) Quat {
	th := v.Norm()
	var k float64
	if th < 1e-8 {
		k = 0.5 - th*th/48 // sin(x/2)/x near zero
	} else {
		k = math.Sin(th/2) / th
	}
	return Quat{
		W: math.Cos(th / 2),
		X: k * v.X,
		Y: k * v.Y,
		Z: k * v.Z,
	}
}

// QuatLog is the inverse of QuatExp. The branch is not canonicalized: a
// quaternion with negative scalar part maps to a rotation vector longer
// than pi. Callers wanting the short branch force the hemisphere first.
func QuatLog(q Quat) Vec3 {
	u := Vec3{X: q.X, Y: q.Y, Z: q.Z}
	n := u.Norm()
	if n < 1e-12 {
		return u.Scale(2)
	}
	th := 2 * math.Atan2(n, q.W)
	return u.Scale(th / n)
}

// QuatFromTwoVectors returns the shortest rotation taking a into b
func QuatFromTwoVectors(a, b Vec3) Quat {
	an := a.Normalized()
	bn := b.Normalized()
	d := an.Dot(bn)
	if d < -1+1e-12 {
		// Antiparallel: rotate pi about any axis normal to a
		axis := an.Cross(Vec3{X: 1})
		if _, ok := axis.TryNormalized(); !ok {
			axis = an.Cross(Vec3{Y: 1})
		}
		axis = axis.Normalized()
		return Quat{X: axis.X, Y: axis.Y, Z: axis.Z}
	}
	u := an.Cross(bn)
	q := Quat{W: 1 + d, X: u.X, Y: u.Y, Z: u.Z}
	n := 1 / q.Norm()
	return Quat{W: q.W * n, X: q.X * n, Y: q.Y * n, Z: q.Z * n}
}

// AngularDistance is the rotation angle between two unit quaternions [rad]
func AngularDistance(a, b Quat) float64 {
	d := a.Conj().Mul(b)
	n := math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
	return 2 * math.Atan2(n, math.Abs(d.W))
}
