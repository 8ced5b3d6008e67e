// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.3
//

package goins

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// PredictECEF advances the mean and covariance over dt seconds under one
// pair of IMU samples: gyro [rad/s] and accel [m/s^2], both body frame.
//
// The inertial error-state Jacobian over dt is
//
//	        gyro   att    vel   accel
//	gyro  [   I     0      0     0   ]
//	att   [  dtR    I      0     0   ]
//	vel   [   0    dtQ     I    dtR  ]
//	accel [   0     0      0     I   ]
//
// with dtR = -dt*R (body-to-ECEF rotation) and dtQ = -dt*[-a_sens]x.
// F*P*F^T is computed blockwise against a snapshot of P, writing only the
// upper block triangle; the six lower off-diagonal blocks are mirrored
// afterward. Process noise is added on the diagonals, and the position
// block picks up the dt^2 coupling to the prior velocity covariance.
func (k *Qkf) PredictECEF(gyro, accel Vec3, dt float64) error {
	if dt < 0 {
		return fmt.Errorf("PredictECEF() requires dt >= 0, got %g", dt)
	}

	attConj := k.AvgState.Orientation.Conj()

	// Sensible acceleration rotated into the inertial frame, and the local
	// gravity vector along the geocentric radius
	accelSensible := attConj.Rotate(accel.Sub(k.AvgState.AccelBias))
	accelGravity := k.AvgState.Position.Normalized().Scale(k.Opt.AccelGravityNorm)
	k.AvgState.InertialAccel = accelSensible.Sub(accelGravity)

	attConj.RotationMatrixTo(k.dtR)
	k.dtR.Scale(-dt, k.dtR)
	accelSensible.Scale(-1).Skew(k.dtQ)
	k.dtQ.Scale(-dt, k.dtQ)

	// Full copy of the covariance, so cross-block updates read prior values
	k.snap.Copy(k.Cov)

	// gyro row: identity, nothing to do

	// attitude row couplings of the gyro block row
	k.sgemm(0, 3, k.dtR, 0, 0)
	k.sgemm(0, 6, k.dtQ, 0, 3)
	k.sgemm(0, 6, k.dtR, 0, 9)

	// attitude block
	k.sgemmm(3, 3, k.dtR, 0, 0)
	k.ssyr2k(3, 3, k.dtR, 0, 3)
	{
		// cov(3,6) += dtR*P(0,6) + dtR*P(0,3)*dtQ^T
		d := blk(k.Cov, 3, 6)
		k.t1.Mul(k.dtR, blk(k.snap, 0, 6))
		d.Add(d, k.t1)
		k.t1.Mul(k.dtR, blk(k.snap, 0, 3))
		k.t2.Mul(k.t1, k.dtQ.T())
		d.Add(d, k.t2)
	}
	k.sgemmm(3, 6, k.dtR, 0, 9)
	k.sgemm(3, 6, k.dtR, 3, 9)
	k.sgemm(3, 6, k.dtQ, 3, 3)
	{
		// cov(3,9) += dtR*P(0,9)
		d := blk(k.Cov, 3, 9)
		k.t1.Mul(k.dtR, blk(k.snap, 0, 9))
		d.Add(d, k.t1)
	}

	// velocity block
	k.ssyr2k(6, 6, k.dtQ, 3, 6)
	k.ssyr2k(6, 6, k.dtR, 9, 6)
	{
		// cov(6,6) += tmp + tmp^T with tmp = dtR*(dtQ*P(3,9))^T
		d := blk(k.Cov, 6, 6)
		k.t1.Mul(k.dtQ, blk(k.snap, 3, 9))
		k.t2.Mul(k.dtR, k.t1.T())
		d.Add(d, k.t2)
		k.t1.Copy(k.t2.T())
		d.Add(d, k.t1)
	}
	k.sgemmm(6, 6, k.dtQ, 3, 3)
	k.sgemmm(6, 6, k.dtR, 9, 9)
	{
		// cov(6,9) += dtQ*P(3,9) + dtR*P(9,9)
		d := blk(k.Cov, 6, 9)
		k.t1.Mul(k.dtQ, blk(k.snap, 3, 9))
		d.Add(d, k.t1)
		k.t1.Mul(k.dtR, blk(k.snap, 9, 9))
		d.Add(d, k.t1)
	}

	// accel bias row: identity, nothing to do

	k.symmetrize()

	// Deterministic position coupling from the prior velocity covariance
	{
		pt3 := k.PtCov.Slice(0, 3, 0, 3).(*mat.Dense)
		k.t1.Scale(dt*dt, blk(k.snap, 6, 6))
		pt3.Add(pt3, k.t1)
	}

	// Additive process noise
	addDiag(k.Cov, IdxGyroBias, k.Opt.GyroStabilityNoise, dt)
	addDiag(k.Cov, IdxAttitude, k.Opt.GyroWhiteNoise, dt)
	addDiag(k.Cov, IdxVelocity, k.Opt.AccelWhiteNoise, dt)
	addDiag(k.Cov, IdxAccelBias, k.Opt.AccelStabilityNoise, dt)
	addDiag(k.PtCov, IdxPosition, k.Opt.AccelWhiteNoise, 0.5*dt*dt)
	k.PtCov.Set(IdxClock, IdxClock, k.PtCov.At(IdxClock, IdxClock)+k.Opt.ClockStabilityNoise*dt)

	// Project the mean forward
	a := k.AvgState.InertialAccel
	k.AvgState.BodyRate = gyro.Sub(k.AvgState.GyroBias)
	orientation := QuatExp(k.AvgState.BodyRate.Scale(dt)).Mul(k.AvgState.Orientation)
	position := k.AvgState.Position.Add(k.AvgState.Velocity.Scale(dt)).Add(a.Scale(0.5 * dt * dt))
	velocity := k.AvgState.Velocity.Add(a.Scale(dt))

	k.AvgState.Position = position
	k.AvgState.Velocity = velocity
	// Renormalization occurs during the measurement updates
	k.AvgState.Orientation = orientation

	return k.CheckInvariants()
}
