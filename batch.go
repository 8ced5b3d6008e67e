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

// BatchPseudorangeUpdate fuses the pseudoranges of one epoch in a single
// joint update of the position/clock space:
//   - S = H P H^T + R
//   - K = P H^T S^-1
//   - update = K * (measurement - prediction)
//   - P = P - K H P
//
// It is the algebraic equivalent of looping ObsGpsPseudorange over the
// satellites with a shared accumulator, at the price of factoring the n x n
// innovation matrix. The sequential form is preferred in steady state; this
// one serves as cross-check and for post-processing.
func (k *Qkf) BatchPseudorangeUpdate(satPos []Vec3, pseudorange, sigma []float64) error {
	n := len(satPos)
	if n == 0 {
		return fmt.Errorf("BatchPseudorangeUpdate() requires at least one satellite")
	}
	if len(pseudorange) != n || len(sigma) != n {
		return fmt.Errorf("BatchPseudorangeUpdate() length mismatch: sat=%d, pr=%d, sigma=%d",
			n, len(pseudorange), len(sigma))
	}

	H := mat.NewDense(n, 4, nil)
	r := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		if sigma[i] <= 0 {
			return fmt.Errorf("BatchPseudorangeUpdate() requires sigma > 0, got %g", sigma[i])
		}
		direction := k.AvgState.Position.Sub(satPos[i])
		prediction := direction.Norm()
		direction = direction.Scale(1 / prediction)
		prediction += k.AvgState.ClockBias

		H.SetRow(i, []float64{direction.X, direction.Y, direction.Z, 1})
		r.SetVec(i, pseudorange[i]-prediction)
	}

	// S (H P H^T + R)
	var HP mat.Dense
	HP.Mul(H, k.PtCov)
	var S mat.Dense
	S.Mul(&HP, H.T())
	for i := 0; i < n; i++ {
		S.Set(i, i, S.At(i, i)+sigma[i])
	}

	// K^T (S^-1 H P), using the symmetry of P
	var Kt mat.Dense
	if err := Kt.Solve(&S, &HP); err != nil {
		return fmt.Errorf("innovation matrix solve failed, err=%v", err)
	}

	// update (K r)
	var update mat.VecDense
	update.MulVec(Kt.T(), r)

	// P (P - K H P)
	var KHP mat.Dense
	KHP.Mul(Kt.T(), &HP)
	k.PtCov.Sub(k.PtCov, &KHP)

	k.AvgState.ApplyPosClockError(&update)
	return k.CheckInvariants()
}
