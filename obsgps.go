// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.3
//

// GNSS measurement updates. The scalar pseudorange and deltarange updates
// thread a caller-owned accumulator across the satellites of one epoch: the
// Kalman gain depends on the covariance, not on an un-applied mean
// correction, so the accumulator carries the pending correction without
// relinearizing the mean. The caller folds it in after the last satellite
// via ApplyPosClock or ApplyInertial.

package goins

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ObsGpsPseudorange runs one scalar EKF update in the position/clock space
// against a code pseudorange [m] to a satellite at satPos (ECEF).
// accum is the 4-dim epoch accumulator (NewPosClockAccum); sigma is the
// measurement variance [m^2].
func (k *Qkf) ObsGpsPseudorange(accum *mat.VecDense, satPos Vec3, pseudorange, sigma float64) error {
	if sigma <= 0 {
		return fmt.Errorf("ObsGpsPseudorange() requires sigma > 0, got %g", sigma)
	}

	// Direction of the observation and the predicted pseudorange, both at
	// the mean shifted by the pending accumulator
	dp := Vec3{X: accum.AtVec(0), Y: accum.AtVec(1), Z: accum.AtVec(2)}
	direction := k.AvgState.Position.Add(dp).Sub(satPos)
	prediction := direction.Norm()
	direction = direction.Scale(1 / prediction)
	prediction += k.AvgState.ClockBias + accum.AtVec(3)

	k.h4.SetVec(0, direction.X)
	k.h4.SetVec(1, direction.Y)
	k.h4.SetVec(2, direction.Z)
	k.h4.SetVec(3, 1)

	// ph = pt_cov * h; innovation variance h.ph + sigma
	k.ph4.MulVec(k.PtCov, k.h4)
	sInv := 1 / (mat.Dot(k.h4, k.ph4) + sigma)
	residual := pseudorange - prediction

	// accum += gain*residual; pt_cov -= gain * (h^T pt_cov)
	accum.AddScaledVec(accum, sInv*residual, k.ph4)
	k.out4.Outer(sInv, k.ph4, k.ph4)
	k.PtCov.Sub(k.PtCov, k.out4)
	return k.CheckInvariants()
}

// ObsGpsDeltarange runs one scalar EKF update in the inertial space against
// a range-rate observation [m/s] from a satellite moving at satVel (ECEF).
// accum is the 12-dim epoch accumulator (NewInertialAccum); sigma is the
// measurement variance [(m/s)^2].
func (k *Qkf) ObsGpsDeltarange(accum *mat.VecDense, satVel Vec3, deltarange, sigma float64) error {
	if sigma <= 0 {
		return fmt.Errorf("ObsGpsDeltarange() requires sigma > 0, got %g", sigma)
	}

	dv := Vec3{X: accum.AtVec(IdxVelocity), Y: accum.AtVec(IdxVelocity + 1), Z: accum.AtVec(IdxVelocity + 2)}
	direction := k.AvgState.Velocity.Add(dv).Sub(satVel)
	prediction := direction.Norm()
	direction = direction.Scale(1 / prediction)

	// ph = cov[:, vel] * d
	for r := 0; r < 12; r++ {
		k.ph12.SetVec(r, k.Cov.At(r, IdxVelocity)*direction.X+
			k.Cov.At(r, IdxVelocity+1)*direction.Y+
			k.Cov.At(r, IdxVelocity+2)*direction.Z)
	}
	innovationCov := direction.X*k.ph12.AtVec(IdxVelocity) +
		direction.Y*k.ph12.AtVec(IdxVelocity+1) +
		direction.Z*k.ph12.AtVec(IdxVelocity+2)
	sInv := 1 / (innovationCov + sigma)
	residual := deltarange - prediction

	accum.AddScaledVec(accum, sInv*residual, k.ph12)
	k.out12.Outer(sInv, k.ph12, k.ph12)
	k.Cov.Sub(k.Cov, k.out12)
	return k.CheckInvariants()
}

// ObsGpsPvReport fuses a bundled external position/velocity fix with
// per-axis error variances pErr [m^2] and vErr [(m/s)^2]. The three axes
// are observed with diagonal measurement covariance, so each leg runs as
// three sequential scalar updates threading its own accumulator, applied
// to the mean after the last axis.
func (k *Qkf) ObsGpsPvReport(pos, vel, pErr, vErr Vec3) error {
	// Position leg, against the position/clock block
	{
		residual := pos.Sub(k.AvgState.Position)
		res := [3]float64{residual.X, residual.Y, residual.Z}
		errs := [3]float64{pErr.X, pErr.Y, pErr.Z}

		k.upd4.Zero()
		for i := 0; i < 3; i++ {
			sInv := 1 / (k.PtCov.At(i, i) + errs[i])
			for r := 0; r < 4; r++ {
				k.ph4.SetVec(r, k.PtCov.At(r, i))
			}
			k.upd4.AddScaledVec(k.upd4, sInv*(res[i]-k.upd4.AtVec(i)), k.ph4)
			k.out4.Outer(sInv, k.ph4, k.ph4)
			k.PtCov.Sub(k.PtCov, k.out4)
		}
		k.AvgState.ApplyPosClockError(k.upd4)
	}

	// Velocity leg, against the velocity block of the inertial covariance
	{
		residual := vel.Sub(k.AvgState.Velocity)
		res := [3]float64{residual.X, residual.Y, residual.Z}
		errs := [3]float64{vErr.X, vErr.Y, vErr.Z}

		k.upd12.Zero()
		for i := 0; i < 3; i++ {
			idx := IdxVelocity + i
			sInv := 1 / (k.Cov.At(idx, idx) + errs[i])
			for r := 0; r < 12; r++ {
				k.ph12.SetVec(r, k.Cov.At(r, idx))
			}
			k.upd12.AddScaledVec(k.upd12, sInv*(res[i]-k.upd12.AtVec(idx)), k.ph12)
			k.out12.Outer(sInv, k.ph12, k.ph12)
			k.Cov.Sub(k.Cov, k.out12)
		}
		k.AvgState.ApplyInertialError(k.upd12)
	}

	return k.CheckInvariants()
}
