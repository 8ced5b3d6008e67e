// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.4
//

package goins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimConstellationGeometry(t *testing.T) {
	sim := NewSim(nil)

	for i := 0; i < sim.Opt.NSat; i++ {
		p := sim.SatPos(i, 120)
		v := sim.SatVel(i, 120)
		assert.InDelta(t, sim.Opt.OrbitRadius, p.Norm(), 1, "orbit radius, sat %d", i)
		assert.InDelta(t, 0, p.Dot(v), 1e-3*p.Norm()*v.Norm(), "velocity tangential, sat %d", i)
	}

	sats := sim.Visible(0)
	assert.NotEmpty(t, sats, "some satellites above the mask")
}

func TestSimNoiseFreeMeasurementsAreConsistent(t *testing.T) {
	opt := NewSimOpt()
	opt.ClockBias = 42
	sim := NewSim(opt)

	for _, i := range sim.Visible(30) {
		want := sim.SatPos(i, 30).Sub(sim.Pos).Norm() + 42
		assert.InDelta(t, want, sim.Pseudorange(i, 30), 1e-9)
		assert.InDelta(t, sim.SatVel(i, 30).Norm(), sim.Deltarange(i, 30), 1e-9)
	}
}

func TestSimImuSensesGravityAndBias(t *testing.T) {
	opt := NewSimOpt()
	opt.GyroBias = Vec3{X: 0.01, Y: -0.02, Z: 0.005}
	sim := NewSim(opt)

	gyro, accel := sim.Imu()
	assert.Equal(t, opt.GyroBias, gyro)
	assert.InDelta(t, G0, accel.Norm(), 1e-9, "static accelerometer senses 1 g")
}

func TestSimNoiseIsDeterministic(t *testing.T) {
	opt := NewSimOpt()
	opt.PrNoise = 2
	a := NewSim(opt)
	b := NewSim(opt)
	assert.Equal(t, a.Pseudorange(0, 10), b.Pseudorange(0, 10))
}

// Soak: a full noise-free mission through predict, pseudorange, deltarange
// and gravity aiding keeps every invariant and holds the truth.
func TestSoakStaticMission(t *testing.T) {
	if testing.Short() {
		t.Skip("soak test")
	}

	sim := NewSim(NewSimOpt())
	k := NewQkf(NewOpt())
	require.NoError(t, k.InitPosition(sim.Pos, Vec3{X: SQ(10), Y: SQ(10), Z: SQ(10)}))
	require.NoError(t, k.InitVelocity(Vec3{}, Vec3{X: 0.01, Y: 0.01, Z: 0.01}))

	const dt = 0.01
	for i := 0; i < 6000; i++ { // 60 s at 100 Hz
		gyro, accel := sim.Imu()
		require.NoError(t, k.PredictECEF(gyro, accel, dt))

		if i%100 != 0 {
			continue
		}
		t0 := float64(i) * dt

		// Pseudorange epoch
		accum := NewPosClockAccum()
		for _, s := range sim.Visible(t0) {
			require.NoError(t, k.ObsGpsPseudorange(accum, sim.SatPos(s, t0), sim.Pseudorange(s, t0), 4.0))
		}
		require.NoError(t, k.ApplyPosClock(accum))

		// Deltarange epoch
		inert := NewInertialAccum()
		for _, s := range sim.Visible(t0) {
			require.NoError(t, k.ObsGpsDeltarange(inert, sim.SatVel(s, t0), sim.Deltarange(s, t0), 0.01))
		}
		require.NoError(t, k.ApplyInertial(inert))

		// Gravity aiding
		up := k.AvgState.Position.Normalized()
		require.NoError(t, k.ObsVector(up, up, 1e-4))

		requireHealthy(t, k)
	}

	// Noise-free consistent measurements from a truth-seeded filter: the
	// solution stays on the truth
	assert.Less(t, k.AvgState.Position.Sub(sim.Pos).Norm(), 1.0)
	assert.Less(t, k.AvgState.Velocity.Norm(), 0.1)
	assert.Less(t, ToDeg(k.AngularError(QuatIdentity())), 1.0)
}
