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

// Index layout of the 12-dim inertial error state
const (
	IdxGyroBias  = 0 // [0:3] gyro bias [rad/s]
	IdxAttitude  = 3 // [3:6] attitude error rotation vector [rad]
	IdxVelocity  = 6 // [6:9] velocity [m/s]
	IdxAccelBias = 9 // [9:12] accelerometer bias [m/s^2]
)

// Index layout of the 4-dim position/clock error state
const (
	IdxPosition = 0 // [0:3] position [m]
	IdxClock    = 3 // receiver clock bias [m]
)

// Sentinel row/column passed to clearCovarianceBlock to select the
// position/clock covariance instead of an inertial block
const PosBlock = 12

// State is the mean estimate of the filter.
// Orientation applies ECEF vectors into the body frame as a rotation
// operator; its conjugate is the body-to-ECEF rotation.
type State struct {
	Position    Vec3    // ECEF [m]
	Velocity    Vec3    // ECEF [m/s]
	Orientation Quat    // Unit quaternion
	GyroBias    Vec3    // Body frame [rad/s]
	AccelBias   Vec3    // Body frame [m/s^2]
	ClockBias   float64 // Equivalent range error of the receiver clock [m]

	// Cached from the latest PredictECEF for downstream consumers.
	// Not part of the dynamical state and not carried in the covariance.
	InertialAccel Vec3 // ECEF [m/s^2]
	BodyRate      Vec3 // Body frame [rad/s]
}

// ApplyInertialError folds a 12-dim error vector into the mean: biases and
// velocity additive, attitude via the exp map on the right, then renormalize.
// Returns the posterior attitude correction.
func (s *State) ApplyInertialError(u *mat.VecDense) Quat {
	s.GyroBias = s.GyroBias.Add(Vec3{X: u.AtVec(0), Y: u.AtVec(1), Z: u.AtVec(2)})
	dq := QuatExp(Vec3{X: u.AtVec(3), Y: u.AtVec(4), Z: u.AtVec(5)})
	s.Orientation = s.Orientation.Mul(dq).IncNormalized()
	s.Velocity = s.Velocity.Add(Vec3{X: u.AtVec(6), Y: u.AtVec(7), Z: u.AtVec(8)})
	s.AccelBias = s.AccelBias.Add(Vec3{X: u.AtVec(9), Y: u.AtVec(10), Z: u.AtVec(11)})
	return dq
}

// ApplyPosClockError folds a 4-dim error vector into position and clock
func (s *State) ApplyPosClockError(u *mat.VecDense) {
	s.Position = s.Position.Add(Vec3{X: u.AtVec(0), Y: u.AtVec(1), Z: u.AtVec(2)})
	s.ClockBias += u.AtVec(3)
}

func (s *State) IsReal() bool {
	return s.Position.IsReal() &&
		s.Velocity.IsReal() &&
		s.Orientation.IsReal() &&
		s.GyroBias.IsReal() &&
		s.AccelBias.IsReal() &&
		s.InertialAccel.IsReal() &&
		s.BodyRate.IsReal() &&
		isReal(s.ClockBias)
}

func (s *State) String() string {
	return fmt.Sprintf("gyro_bias: %v accel_bias: %v orientation: %v position: %v velocity: %v body_rate: %v clock_bias: %.3f",
		s.GyroBias, s.AccelBias, s.Orientation, s.Position, s.Velocity, s.BodyRate, s.ClockBias)
}

// NewInertialAccum returns a zeroed 12-dim accumulator for threading
// through ObsGpsDeltarange over the satellites of one epoch
func NewInertialAccum() *mat.VecDense {
	return mat.NewVecDense(12, nil)
}

// NewPosClockAccum returns a zeroed 4-dim accumulator for threading
// through ObsGpsPseudorange over the satellites of one epoch
func NewPosClockAccum() *mat.VecDense {
	return mat.NewVecDense(4, nil)
}

// SigmaPointDifference maps two states to the 16-dim error vector taking
// mean into point, ordered [gyro_bias, attitude, velocity, accel_bias,
// position, clock]. The attitude part is the log of the relative rotation;
// the point is forced onto the mean's quaternion hemisphere first, because
// q and -q are one rotation but the log map returns branches 2*pi apart.
func SigmaPointDifference(mean, point *State) *mat.VecDense {
	ret := mat.NewVecDense(16, nil)

	db := point.GyroBias.Sub(mean.GyroBias)
	ret.SetVec(0, db.X)
	ret.SetVec(1, db.Y)
	ret.SetVec(2, db.Z)

	po := point.Orientation
	if mean.Orientation.Dot(po) < 0 {
		po = po.Neg()
	}
	da := QuatLog(mean.Orientation.Conj().Mul(po))
	ret.SetVec(3, da.X)
	ret.SetVec(4, da.Y)
	ret.SetVec(5, da.Z)

	dv := point.Velocity.Sub(mean.Velocity)
	ret.SetVec(6, dv.X)
	ret.SetVec(7, dv.Y)
	ret.SetVec(8, dv.Z)

	dba := point.AccelBias.Sub(mean.AccelBias)
	ret.SetVec(9, dba.X)
	ret.SetVec(10, dba.Y)
	ret.SetVec(11, dba.Z)

	dp := point.Position.Sub(mean.Position)
	ret.SetVec(12, dp.X)
	ret.SetVec(13, dp.Y)
	ret.SetVec(14, dp.Z)

	ret.SetVec(15, point.ClockBias-mean.ClockBias)
	return ret
}
