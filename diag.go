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

	"gonum.org/v1/gonum/mat"
)

// AngularError is the rotation angle between a reference attitude and the
// estimate [rad]
func (k *Qkf) AngularError(q Quat) float64 {
	return AngularDistance(q, k.AvgState.Orientation)
}

// GyroBiasError is the Euclidean distance between a reference gyro bias and
// the estimate [rad/s]
func (k *Qkf) GyroBiasError(gyroBias Vec3) float64 {
	return k.AvgState.GyroBias.Sub(gyroBias).Norm()
}

// AccelBiasError is the Euclidean distance between a reference accel bias
// and the estimate [m/s^2]
func (k *Qkf) AccelBiasError(accelBias Vec3) float64 {
	return k.AvgState.AccelBias.Sub(accelBias).Norm()
}

// MahalanobisDistance is the covariance-weighted distance from the mean to
// a test state: the 16-dim sigma-point difference split over the two
// covariance blocks, each solved by LU. A diverging solve signals an
// ill-conditioned covariance, so this doubles as a health check.
func (k *Qkf) MahalanobisDistance(point *State) (float64, error) {
	delta := SigmaPointDifference(&k.AvgState, point)
	mainErr := delta.SliceVec(0, 12).(*mat.VecDense)
	posErr := delta.SliceVec(12, 16).(*mat.VecDense)

	var lu mat.LU
	lu.Factorize(k.Cov)
	var invDelta mat.VecDense
	if err := lu.SolveVecTo(&invDelta, false, mainErr); err != nil {
		return 0, fmt.Errorf("inertial covariance solve failed, err=%v", err)
	}

	var luPt mat.LU
	luPt.Factorize(k.PtCov)
	var invDeltaEnd mat.VecDense
	if err := luPt.SolveVecTo(&invDeltaEnd, false, posErr); err != nil {
		return 0, fmt.Errorf("position covariance solve failed, err=%v", err)
	}

	return math.Sqrt(mat.Dot(mainErr, &invDelta) + mat.Dot(posErr, &invDeltaEnd)), nil
}
