// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.3
//

package goins

import (
	"fmt"
	"math"
)

// ObsVector fuses a known unit reference vector in the inertial frame with
// its measurement in the body frame (gravity-aided tilt, star tracker).
// sigma is the observation variance [rad^2].
//
// The residual is the rotation-vector log of the shortest rotation taking
// ref into the de-rotated observation. The observation Jacobian spans the
// plane normal to ref with two orthonormal columns; one rank-one Kalman
// update runs per column, accumulating a 12-dim correction that is applied
// to the mean at the end.
func (k *Qkf) ObsVector(ref, obs Vec3, sigma float64) error {
	if sigma <= 0 {
		return fmt.Errorf("ObsVector() requires sigma > 0, got %g", sigma)
	}

	obsRef := k.AvgState.Orientation.Conj().Rotate(obs)
	vResidual := QuatLog(QuatFromTwoVectors(ref, obsRef))

	// First basis column: normal to ref, along the residual plane when the
	// residual direction is usable, else against a coordinate axis that is
	// well separated from ref
	var col0 Vec3
	vhat, ok := vResidual.TryNormalized()
	switch {
	case ok && ref.Sub(vhat).Norm() > VecObsBasisEps:
		col0 = ref.Cross(vhat).Normalized()
	case math.Abs(ref.Dot(Vec3{X: 1})) < 0.707:
		col0 = ref.Cross(Vec3{X: 1}).Normalized()
	default:
		col0 = ref.Cross(Vec3{Y: 1}).Normalized()
	}
	col1 := ref.Cross(col0).Scale(-1)

	k.upd12.Zero()
	for _, h := range [2]Vec3{col0, col1} {
		// ph = cov[:, att] * h
		for r := 0; r < 12; r++ {
			k.ph12.SetVec(r, k.Cov.At(r, IdxAttitude)*h.X+
				k.Cov.At(r, IdxAttitude+1)*h.Y+
				k.Cov.At(r, IdxAttitude+2)*h.Z)
		}
		obsCov := h.X*k.ph12.AtVec(IdxAttitude) +
			h.Y*k.ph12.AtVec(IdxAttitude+1) +
			h.Z*k.ph12.AtVec(IdxAttitude+2)
		sInv := 1 / (sigma + obsCov)

		// update += gain * (h . residual); cov -= gain * (h^T cov[att, :])
		k.upd12.AddScaledVec(k.upd12, sInv*h.Dot(vResidual), k.ph12)
		k.out12.Outer(sInv, k.ph12, k.ph12)
		k.Cov.Sub(k.Cov, k.out12)
	}

	k.AvgState.ApplyInertialError(k.upd12)
	return k.CheckInvariants()
}
