// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.4
//

package goins

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonum.org/v1/gonum/mat"
)

// requireHealthy checks the universal filter invariants: symmetry,
// finiteness, non-negative diagonals, unit-norm orientation
func requireHealthy(t *testing.T, k *Qkf) {
	t.Helper()

	for _, m := range []*mat.Dense{k.Cov, k.PtCov} {
		n, _ := m.Dims()
		for i := 0; i < n; i++ {
			require.GreaterOrEqual(t, m.At(i, i), 0.0, "diagonal (%d,%d)", i, i)
			for j := 0; j < n; j++ {
				require.True(t, isReal(m.At(i, j)), "entry (%d,%d) not finite", i, j)
				tol := 1e-9 * math.Max(1, math.Abs(m.At(i, j)))
				require.InDelta(t, m.At(i, j), m.At(j, i), tol, "symmetry at (%d,%d)", i, j)
			}
		}
	}
	require.True(t, k.AvgState.IsReal())
	require.Less(t, math.Abs(1-k.AvgState.Orientation.Norm()), QuatNormTol)
	require.NoError(t, k.Fault())
}

// initAt seeds a filter at an ECEF position on the surface
func initAt(t *testing.T, pos Vec3) *Qkf {
	t.Helper()
	k := NewQkf(NewOpt())
	require.NoError(t, k.InitPosition(pos, Vec3{X: SQ(100), Y: SQ(100), Z: SQ(100)}))
	return k
}

func TestNewQkfDefaults(t *testing.T) {
	k := NewQkf(nil)

	for i := 0; i < 3; i++ {
		assert.InDelta(t, SQ(GyroBiasStd0), k.Cov.At(i, i), 1e-12)
		assert.InDelta(t, AttVar0, k.Cov.At(3+i, 3+i), 1e-12)
		assert.InDelta(t, VelVar0, k.Cov.At(6+i, 6+i), 1e-12)
		assert.InDelta(t, SQ(AccelBiasStd0), k.Cov.At(9+i, 9+i), 1e-12)
		assert.InDelta(t, SQ(PosStd0), k.PtCov.At(i, i), 1e-3)
	}
	assert.InDelta(t, SQ(ClockBiasStd0), k.PtCov.At(3, 3), 1e-9)

	// All off-diagonals zero
	for i := 0; i < 12; i++ {
		for j := 0; j < 12; j++ {
			if i != j {
				assert.Zero(t, k.Cov.At(i, j))
			}
		}
	}

	assert.Equal(t, QuatIdentity(), k.AvgState.Orientation)
	assert.Equal(t, Vec3{}, k.AvgState.Position)
	assert.Equal(t, Vec3{}, k.AvgState.Velocity)
	assert.Zero(t, k.AvgState.ClockBias)
	requireHealthy(t, k)
}

func TestInitClearsCrossCovariance(t *testing.T) {
	k := initAt(t, Vec3{Z: Re})

	// Correlate the blocks first
	for i := 0; i < 10; i++ {
		require.NoError(t, k.PredictECEF(Vec3{X: 0.01}, Vec3{Y: 0.1}, 0.01))
	}

	vel := Vec3{X: 1, Y: 2, Z: 3}
	velErr := Vec3{X: 4, Y: 5, Z: 6}
	require.NoError(t, k.InitVelocity(vel, velErr))

	assert.Equal(t, vel, k.AvgState.Velocity)
	assert.Equal(t, 4.0, k.Cov.At(6, 6))
	assert.Equal(t, 5.0, k.Cov.At(7, 7))
	assert.Equal(t, 6.0, k.Cov.At(8, 8))
	for i := 6; i < 9; i++ {
		for j := 0; j < 12; j++ {
			if j < 6 || j >= 9 {
				assert.Zero(t, k.Cov.At(i, j), "cross covariance (%d,%d)", i, j)
				assert.Zero(t, k.Cov.At(j, i), "cross covariance (%d,%d)", j, i)
			}
		}
	}
	requireHealthy(t, k)
}

func TestInitAttitude(t *testing.T) {
	k := NewQkf(nil)
	q := QuatExp(Vec3{X: 0.1, Y: -0.2, Z: 0.3})
	attErr := mat.NewDense(3, 3, []float64{
		0.01, 0, 0,
		0, 0.02, 0,
		0, 0, 0.03,
	})
	require.NoError(t, k.InitAttitude(q, attErr))

	assert.Equal(t, q, k.AvgState.Orientation)
	assert.Equal(t, 0.01, k.Cov.At(3, 3))
	assert.Equal(t, 0.02, k.Cov.At(4, 4))
	assert.Equal(t, 0.03, k.Cov.At(5, 5))
	requireHealthy(t, k)
}

func TestInitPositionResetsClock(t *testing.T) {
	k := NewQkf(nil)

	// Perturb the clock variance, then reseed the position
	k.PtCov.Set(3, 3, 1)
	k.PtCov.Set(0, 3, 123)
	k.PtCov.Set(3, 0, 123)

	pos := Vec3{X: Re, Y: 100, Z: -200}
	require.NoError(t, k.InitPosition(pos, Vec3{X: 1e4, Y: 1e4, Z: 1e4}))

	assert.Equal(t, pos, k.AvgState.Position)
	assert.Equal(t, 1e4, k.PtCov.At(0, 0))
	assert.Equal(t, SQ(ClockBiasStd0), k.PtCov.At(3, 3))
	for i := 0; i < 3; i++ {
		assert.Zero(t, k.PtCov.At(i, 3))
		assert.Zero(t, k.PtCov.At(3, i))
	}
	requireHealthy(t, k)
}

func TestPredictZeroDtIsIdentity(t *testing.T) {
	k := initAt(t, Vec3{Z: Re})

	mean := k.AvgState
	cov := mat.DenseCopyOf(k.Cov)
	ptCov := mat.DenseCopyOf(k.PtCov)

	require.NoError(t, k.PredictECEF(Vec3{}, Vec3{}, 0))

	assert.Equal(t, mean.Position, k.AvgState.Position)
	assert.Equal(t, mean.Velocity, k.AvgState.Velocity)
	assert.Equal(t, mean.Orientation, k.AvgState.Orientation)
	assert.Equal(t, mean.GyroBias, k.AvgState.GyroBias)
	assert.Equal(t, mean.AccelBias, k.AvgState.AccelBias)
	assert.Equal(t, mean.ClockBias, k.AvgState.ClockBias)

	for i := 0; i < 12; i++ {
		for j := 0; j < 12; j++ {
			assert.InDelta(t, cov.At(i, j), k.Cov.At(i, j), 1e-12)
		}
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			assert.InDelta(t, ptCov.At(i, j), k.PtCov.At(i, j), 1e-12)
		}
	}
	requireHealthy(t, k)
}

func TestPredictRejectsNegativeDt(t *testing.T) {
	k := initAt(t, Vec3{Z: Re})
	require.Error(t, k.PredictECEF(Vec3{}, Vec3{}, -0.01))
}

func TestPredictMonotonicGrowth(t *testing.T) {
	k := initAt(t, Vec3{Z: Re})

	prev := make([]float64, 16)
	snapshotDiag := func(dst []float64) {
		for i := 0; i < 12; i++ {
			dst[i] = k.Cov.At(i, i)
		}
		for i := 0; i < 4; i++ {
			dst[12+i] = k.PtCov.At(i, i)
		}
	}
	snapshotDiag(prev)

	cur := make([]float64, 16)
	for n := 0; n < 100; n++ {
		require.NoError(t, k.PredictECEF(Vec3{}, Vec3{}, 0.01))
		snapshotDiag(cur)
		for i := range cur {
			require.GreaterOrEqual(t, cur[i], prev[i], "variance %d shrank at step %d", i, n)
		}
		copy(prev, cur)
	}
	requireHealthy(t, k)
}

func TestPredictMirrorsOffDiagonalBlocks(t *testing.T) {
	k := initAt(t, Vec3{Z: Re})

	// Covariance asymmetric by construction
	k.Cov.Set(0, 3, 0.010)
	k.Cov.Set(3, 0, -0.020)
	k.Cov.Set(1, 7, 0.005)
	k.Cov.Set(7, 1, 0.004)
	k.Cov.Set(5, 9, -0.003)
	k.Cov.Set(9, 5, 0.001)

	require.NoError(t, k.PredictECEF(Vec3{X: 0.02}, Vec3{X: 0.5, Z: 9.8}, 0.01))

	for _, b := range mirrorBlocks {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				assert.Equal(t, k.Cov.At(b.col+j, b.row+i), k.Cov.At(b.row+i, b.col+j),
					"block (%d,%d) entry (%d,%d)", b.row, b.col, i, j)
			}
		}
	}
}

func TestPredictCachesAccelAndRate(t *testing.T) {
	k := initAt(t, Vec3{Z: Re})
	gyro := Vec3{X: 0.02, Y: -0.01, Z: 0.03}
	require.NoError(t, k.PredictECEF(gyro, Vec3{Z: G0}, 0.01))

	// Identity attitude at the north pole: sensed acceleration cancels
	// gravity, the body rate is the bias-corrected gyro
	assert.InDelta(t, 0, k.AvgState.InertialAccel.Norm(), 1e-9)
	assert.Equal(t, gyro, k.AvgState.BodyRate)
}

func TestSigmaPointDifferenceSelfIsZero(t *testing.T) {
	k := initAt(t, Vec3{Z: Re})
	require.NoError(t, k.PredictECEF(Vec3{X: 0.1}, Vec3{Y: 1}, 0.01))

	d := SigmaPointDifference(&k.AvgState, &k.AvgState)
	for i := 0; i < 16; i++ {
		assert.Zero(t, d.AtVec(i), "component %d", i)
	}
}

func TestSigmaPointDifferenceHemisphere(t *testing.T) {
	a := State{Orientation: Quat{W: 1}}
	b := State{Orientation: Quat{W: -1}}

	d := SigmaPointDifference(&a, &b)
	for i := 3; i < 6; i++ {
		assert.InDelta(t, 0, d.AtVec(i), 10*Eps32, "attitude component %d", i)
	}
}

func TestSigmaPointDifferenceOrdering(t *testing.T) {
	mean := State{Orientation: QuatIdentity()}
	point := State{
		Orientation: QuatExp(Vec3{Z: 0.2}),
		GyroBias:    Vec3{X: 1, Y: 2, Z: 3},
		Velocity:    Vec3{X: 4, Y: 5, Z: 6},
		AccelBias:   Vec3{X: 7, Y: 8, Z: 9},
		Position:    Vec3{X: 10, Y: 11, Z: 12},
		ClockBias:   13,
	}

	d := SigmaPointDifference(&mean, &point)
	assert.InDelta(t, 1, d.AtVec(0), 1e-12)
	assert.InDelta(t, 0.2, d.AtVec(5), 1e-9)
	assert.InDelta(t, 4, d.AtVec(6), 1e-12)
	assert.InDelta(t, 7, d.AtVec(9), 1e-12)
	assert.InDelta(t, 10, d.AtVec(12), 1e-12)
	assert.InDelta(t, 13, d.AtVec(15), 1e-12)
}

func TestMahalanobisDistanceSelfIsZero(t *testing.T) {
	k := initAt(t, Vec3{Z: Re})
	d, err := k.MahalanobisDistance(&k.AvgState)
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-9)
}

func TestMahalanobisDistanceScales(t *testing.T) {
	k := initAt(t, Vec3{Z: Re})

	// One clock standard deviation away
	point := k.AvgState
	point.ClockBias += ClockBiasStd0
	d, err := k.MahalanobisDistance(&point)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d, 1e-6)
}

func TestDiagnosticsErrors(t *testing.T) {
	k := initAt(t, Vec3{Z: Re})

	assert.InDelta(t, 0.25, k.AngularError(QuatExp(Vec3{Y: 0.25})), 1e-9)
	assert.InDelta(t, 5.0, k.GyroBiasError(Vec3{X: 3, Y: 4}), 1e-12)
	assert.InDelta(t, 13.0, k.AccelBiasError(Vec3{Y: 5, Z: 12}), 1e-12)
}

func TestInvariantViolationIsLatched(t *testing.T) {
	k := initAt(t, Vec3{Z: Re})
	k.AvgState.ClockBias = math.NaN()

	require.Error(t, k.CheckInvariants())
	require.Error(t, k.Fault())
}
