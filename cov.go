// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.3
//

// Blockwise kernels over the 12x12 inertial covariance. The propagation
// Jacobian has only seven nonzero 3x3 blocks, four of them identity, so the
// dense F*P*F^T is refactored into a short schedule of the updates below.

package goins

import (
	"gonum.org/v1/gonum/mat"
)

// blk is the 3x3 sub-block view of m at (r, c). Writes go through.
func blk(m *mat.Dense, r, c int) *mat.Dense {
	return m.Slice(r, r+3, c, c+3).(*mat.Dense)
}

// sgemm: cov[dr, dc] += snap[sr, sc] * mult^T
func (k *Qkf) sgemm(dr, dc int, mult *mat.Dense, sr, sc int) {
	k.t1.Mul(blk(k.snap, sr, sc), mult.T())
	d := blk(k.Cov, dr, dc)
	d.Add(d, k.t1)
}

// ssyr2k: cov[dr, dc] += mult*snap[sr, sc] + snap[sc, sr]*mult^T
// for a symmetric destination block
func (k *Qkf) ssyr2k(dr, dc int, mult *mat.Dense, sr, sc int) {
	k.t1.Mul(mult, blk(k.snap, sr, sc))
	k.t2.Mul(blk(k.snap, sc, sr), mult.T())
	d := blk(k.Cov, dr, dc)
	d.Add(d, k.t1)
	d.Add(d, k.t2)
}

// sgemmm: cov[dr, dc] += mult * snap[sr, sc] * mult^T
// with snap[sr, sc] symmetric
func (k *Qkf) sgemmm(dr, dc int, mult *mat.Dense, sr, sc int) {
	k.t1.Mul(mult, blk(k.snap, sr, sc))
	k.t2.Mul(k.t1, mult.T())
	d := blk(k.Cov, dr, dc)
	d.Add(d, k.t2)
}

// The propagation schedule only writes the upper block triangle. These six
// off-diagonal blocks are mirrored from it afterward.
var mirrorBlocks = [6]struct{ row, col int }{
	{3, 0},
	{6, 0},
	{6, 3},
	{9, 0},
	{9, 3},
	{9, 6},
}

// symmetrize restores cov == cov^T after a propagation pass
func (k *Qkf) symmetrize() {
	for _, b := range mirrorBlocks {
		blk(k.Cov, b.row, b.col).Copy(blk(k.Cov, b.col, b.row).T())
	}
}

// addDiag adds v*scale onto the diagonal of the 3x3 block at (rc, rc)
func addDiag(m *mat.Dense, rc int, v Vec3, scale float64) {
	m.Set(rc, rc, m.At(rc, rc)+v.X*scale)
	m.Set(rc+1, rc+1, m.At(rc+1, rc+1)+v.Y*scale)
	m.Set(rc+2, rc+2, m.At(rc+2, rc+2)+v.Z*scale)
}

// clearCovarianceBlock resets the self-covariance of one state block to repl
// and zeroes every cross-covariance term associated with it. An inertial
// offset (0, 3, 6, 9) selects a block of Cov; PosBlock resets PtCov wholesale
// with the default clock variance.
func (k *Qkf) clearCovarianceBlock(rowcol int, repl *mat.Dense) {
	if rowcol <= IdxAccelBias {
		for i := rowcol; i < rowcol+3; i++ {
			for j := 0; j < 12; j++ {
				k.Cov.Set(i, j, 0)
				k.Cov.Set(j, i, 0)
			}
		}
		blk(k.Cov, rowcol, rowcol).Copy(repl)
	} else {
		k.PtCov.Zero()
		blk3 := k.PtCov.Slice(0, 3, 0, 3).(*mat.Dense)
		blk3.Copy(repl)
		k.PtCov.Set(3, 3, ClockBiasStd0*ClockBiasStd0)
	}
}
