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
// Vec3
//-------------------------------------------------------------------

// Vec3 is a 3-vector in whatever frame the caller works in (ECEF or body)
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

func NewVec3(x, y, z float64) *Vec3 {
	return &Vec3{
		X: x,
		Y: y,
		Z: z,
	}
}

func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{X: v.X + w.X, Y: v.Y + w.Y, Z: v.Z + w.Z}
}

func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{X: v.X - w.X, Y: v.Y - w.Y, Z: v.Z - w.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: s * v.X, Y: s * v.Y, Z: s * v.Z}
}

func (v Vec3) Dot(w Vec3) float64 {
	return v.X*w.X + v.Y*w.Y + v.Z*w.Z
}

func (v Vec3) Cross(w Vec3) Vec3 {
	return Vec3{
		X: v.Y*w.Z - v.Z*w.Y,
		Y: v.Z*w.X - v.X*w.Z,
		Z: v.X*w.Y - v.Y*w.X,
	}
}

func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

func (v Vec3) Normalized() Vec3 {
	return v.Scale(1 / v.Norm())
}

// TryNormalized reports ok=false instead of dividing by a vanishing norm
func (v Vec3) TryNormalized() (u Vec3, ok bool) {
	n := v.Norm()
	if n < 1e-300 {
		return Vec3{}, false
	}
	return v.Scale(1 / n), true
}

func (v Vec3) IsReal() bool {
	return isReal(v.X) && isReal(v.Y) && isReal(v.Z)
}

func (v Vec3) String() string {
	return fmt.Sprintf("%.6f %.6f %.6f", v.X, v.Y, v.Z)
}

// Skew writes the cross-product matrix [v]x into dst, so that dst*w = v x w
func (v Vec3) Skew(dst *mat.Dense) {
	dst.SetRow(0, []float64{0, -v.Z, v.Y})
	dst.SetRow(1, []float64{v.Z, 0, -v.X})
	dst.SetRow(2, []float64{-v.Y, v.X, 0})
}

func isReal(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
