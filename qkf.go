// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.3
//

// Implements the error-state quaternion Kalman filter (QKF) fusing a
// strapdown IMU with GNSS pseudorange/deltarange observations in ECEF.
// The mean carries position, velocity, attitude, sensor biases and the
// receiver clock bias. The covariance splits into a 12x12 inertial block
// (gyro bias, attitude, velocity, accel bias) and a 4x4 position/clock
// block; position couples to the inertial block only through the dt^2
// velocity term applied in PredictECEF.

package goins

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Qkf is the filter object. Not re-entrant: each operation mutates
// AvgState, Cov and PtCov in place and callers serialize externally.
type Qkf struct {
	Opt      Opt
	AvgState State

	// Inertial error covariance, 12x12.
	// Layout: [0:3] gyro bias, [3:6] attitude, [6:9] velocity, [9:12] accel bias.
	Cov *mat.Dense

	// Position/clock error covariance, 4x4. Layout: [0:3] position, [3] clock.
	PtCov *mat.Dense

	fault error

	// Preallocated scratch. Fixed-size working set, no allocation in
	// steady-state calls.
	snap  *mat.Dense    // covariance snapshot during propagation
	dtR   *mat.Dense    // -dt * rotation body-to-ECEF
	dtQ   *mat.Dense    // -dt * [-a_sens]x
	t1    *mat.Dense    // 3x3
	t2    *mat.Dense    // 3x3
	out12 *mat.Dense    // rank-one update
	out4  *mat.Dense    // rank-one update
	ph12  *mat.VecDense // cov * h
	ph4   *mat.VecDense // pt_cov * h
	h4    *mat.VecDense
	upd12 *mat.VecDense
	upd4  *mat.VecDense
}

// NewQkf builds a filter with wide a-priori uncertainty: mean at the origin,
// identity attitude, zero velocity and biases, covariance at the documented
// default diagonals
func NewQkf(opt *Opt) *Qkf {
	if opt == nil {
		opt = NewOpt()
	}
	k := &Qkf{
		Opt:   *opt,
		Cov:   mat.NewDense(12, 12, nil),
		PtCov: mat.NewDense(4, 4, nil),

		snap:  mat.NewDense(12, 12, nil),
		dtR:   mat.NewDense(3, 3, nil),
		dtQ:   mat.NewDense(3, 3, nil),
		t1:    mat.NewDense(3, 3, nil),
		t2:    mat.NewDense(3, 3, nil),
		out12: mat.NewDense(12, 12, nil),
		out4:  mat.NewDense(4, 4, nil),
		ph12:  mat.NewVecDense(12, nil),
		ph4:   mat.NewVecDense(4, nil),
		h4:    mat.NewVecDense(4, nil),
		upd12: mat.NewVecDense(12, nil),
		upd4:  mat.NewVecDense(4, nil),
	}
	k.AvgState.Orientation = QuatIdentity()

	for i := 0; i < 3; i++ {
		k.Cov.Set(IdxGyroBias+i, IdxGyroBias+i, GyroBiasStd0*GyroBiasStd0)
		k.Cov.Set(IdxAttitude+i, IdxAttitude+i, AttVar0)
		k.Cov.Set(IdxVelocity+i, IdxVelocity+i, VelVar0)
		k.Cov.Set(IdxAccelBias+i, IdxAccelBias+i, AccelBiasStd0*AccelBiasStd0)
		k.PtCov.Set(IdxPosition+i, IdxPosition+i, PosStd0*PosStd0)
	}
	k.PtCov.Set(IdxClock, IdxClock, ClockBiasStd0*ClockBiasStd0)
	return k
}

// InitAttitude seeds the orientation with an external estimate and its 3x3
// error covariance, zeroing all attitude cross-covariance
func (k *Qkf) InitAttitude(q Quat, attErr *mat.Dense) error {
	k.AvgState.Orientation = q
	k.clearCovarianceBlock(IdxAttitude, attErr)
	return k.CheckInvariants()
}

// InitVelocity seeds the velocity with an external estimate and per-axis
// error variances
func (k *Qkf) InitVelocity(vel, velErr Vec3) error {
	k.AvgState.Velocity = vel
	k.clearCovarianceBlock(IdxVelocity, k.diag3(velErr))
	return k.CheckInvariants()
}

// InitPosition seeds the position with an external estimate and per-axis
// error variances. The clock variance resets to its construction default.
func (k *Qkf) InitPosition(pos, posErr Vec3) error {
	k.AvgState.Position = pos
	k.clearCovarianceBlock(PosBlock, k.diag3(posErr))
	return k.CheckInvariants()
}

func (k *Qkf) diag3(v Vec3) *mat.Dense {
	k.t1.Zero()
	k.t1.Set(0, 0, v.X)
	k.t1.Set(1, 1, v.Y)
	k.t1.Set(2, 2, v.Z)
	return k.t1
}

// ApplyInertial folds an accumulated 12-dim correction into the mean after
// the last deltarange of an epoch
func (k *Qkf) ApplyInertial(accum *mat.VecDense) error {
	k.AvgState.ApplyInertialError(accum)
	return k.CheckInvariants()
}

// ApplyPosClock folds an accumulated 4-dim correction into the mean after
// the last pseudorange of an epoch
func (k *Qkf) ApplyPosClock(accum *mat.VecDense) error {
	k.AvgState.ApplyPosClockError(accum)
	return k.CheckInvariants()
}

// IsReal reports whether every entry of the mean and both covariance blocks
// is finite
func (k *Qkf) IsReal() bool {
	return matIsReal(k.Cov) && matIsReal(k.PtCov) && k.AvgState.IsReal()
}

// CheckInvariants verifies the numerical health of the filter: all entries
// finite and the orientation within QuatNormTol of unit norm. A violation
// is fatal; it is latched and reported by Fault.
func (k *Qkf) CheckInvariants() error {
	if !k.IsReal() {
		k.fault = fmt.Errorf("filter state is not finite: %v", &k.AvgState)
		return k.fault
	}
	if dn := math.Abs(1 - 1/k.AvgState.Orientation.Norm()); dn >= QuatNormTol {
		k.fault = fmt.Errorf("orientation norm drifted off unity by %g", dn)
		return k.fault
	}
	return nil
}

// Fault reports the first invariant violation detected, if any. The filter
// cannot recover from one; reseed via the Init functions or rebuild.
func (k *Qkf) Fault() error {
	return k.fault
}

func matIsReal(m *mat.Dense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if !isReal(m.At(i, j)) {
				return false
			}
		}
	}
	return true
}
