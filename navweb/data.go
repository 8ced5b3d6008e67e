// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.4
//

// Package navweb broadcasts the live filter solution to websocket clients
// as JSON frames, for plotting and field debugging.
package navweb

import (
	"github.com/mkhts/goins"
)

const Port = 8000

// NavData is one broadcast frame of the navigation solution
type NavData struct {
	T float64 // Run time [s]

	// Mean state
	Px, Py, Pz     float64 // ECEF position [m]
	Vx, Vy, Vz     float64 // ECEF velocity [m/s]
	Qw, Qx, Qy, Qz float64 // Attitude quaternion
	Bgx, Bgy, Bgz  float64 // Gyro bias [rad/s]
	Bax, Bay, Baz  float64 // Accelerometer bias [m/s^2]
	Clk            float64 // Receiver clock bias [m]

	// Geodetic position for display
	Lat, Lon, Hei float64

	// Covariance diagonals
	DP, DV, DA, DC float64 // Position/velocity/attitude trace, clock variance
}

// NewNavData captures the current filter solution
func NewNavData(t float64, k *goins.Qkf) *NavData {
	s := &k.AvgState
	llh := goins.ToLLH(s.Position)

	var da, dv float64
	for i := 0; i < 3; i++ {
		da += k.Cov.At(goins.IdxAttitude+i, goins.IdxAttitude+i)
		dv += k.Cov.At(goins.IdxVelocity+i, goins.IdxVelocity+i)
	}
	var dp float64
	for i := 0; i < 3; i++ {
		dp += k.PtCov.At(i, i)
	}

	return &NavData{
		T:  t,
		Px: s.Position.X, Py: s.Position.Y, Pz: s.Position.Z,
		Vx: s.Velocity.X, Vy: s.Velocity.Y, Vz: s.Velocity.Z,
		Qw: s.Orientation.W, Qx: s.Orientation.X, Qy: s.Orientation.Y, Qz: s.Orientation.Z,
		Bgx: s.GyroBias.X, Bgy: s.GyroBias.Y, Bgz: s.GyroBias.Z,
		Bax: s.AccelBias.X, Bay: s.AccelBias.Y, Baz: s.AccelBias.Z,
		Clk: s.ClockBias,
		Lat: goins.ToDeg(llh.Lat), Lon: goins.ToDeg(llh.Lon), Hei: llh.Hei,
		DP: dp, DV: dv, DA: da, DC: k.PtCov.At(goins.IdxClock, goins.IdxClock),
	}
}
