// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.4
//

// Deterministic measurement generator for a static receiver under a
// circular-orbit GPS constellation. Drives the cmd demo and the soak test;
// every stream is reproducible from the seed.

package goins

import (
	"math"
	"math/rand"
)

// SimOpt describes the simulated scenario
type SimOpt struct {
	LLH         PosLLH  // Receiver location
	Orientation Quat    // ECEF-to-body attitude of the receiver
	GyroBias    Vec3    // True gyro bias [rad/s]
	AccelBias   Vec3    // True accelerometer bias [m/s^2]
	ClockBias   float64 // True receiver clock bias [m]
	NSat        int     // Constellation size
	OrbitRadius float64 // Circular orbit radius [m]
	Incl        float64 // Orbit inclination [rad]
	ElMask      float64 // Elevation mask [deg]
	Seed        int64   // Noise seed
	PrNoise     float64 // Pseudorange noise std [m]
	DrNoise     float64 // Deltarange noise std [m/s]
	GyroNoise   float64 // Gyro noise std [rad/s]
	AccelNoise  float64 // Accelerometer noise std [m/s^2]
}

// NewSimOpt returns a mid-latitude static scenario with a GPS-like
// constellation and noise-free sensors
func NewSimOpt() *SimOpt {
	return &SimOpt{
		LLH:         PosLLH{Lat: ToRad(36.0), Lon: ToRad(140.0), Hei: 100},
		Orientation: QuatIdentity(),
		NSat:        8,
		OrbitRadius: 2.656e7, // GPS semi-major axis [m]
		Incl:        ToRad(55.0),
		ElMask:      10,
		Seed:        1,
	}
}

type Sim struct {
	Opt SimOpt
	Pos Vec3 // Receiver ECEF position

	rng *rand.Rand
}

func NewSim(opt *SimOpt) *Sim {
	if opt == nil {
		opt = NewSimOpt()
	}
	return &Sim{
		Opt: *opt,
		Pos: opt.LLH.ToECEF(),
		rng: rand.New(rand.NewSource(opt.Seed)),
	}
}

// Imu returns one pair of IMU samples in the body frame. The receiver is
// static, so the gyro senses only its bias and the accelerometer senses
// gravity reaction along the geocentric radius plus its bias.
func (s *Sim) Imu() (gyro, accel Vec3) {
	up := s.Pos.Normalized()
	gyro = s.Opt.GyroBias.Add(s.noise3(s.Opt.GyroNoise))
	accel = s.Opt.Orientation.Rotate(up.Scale(G0)).Add(s.Opt.AccelBias).Add(s.noise3(s.Opt.AccelNoise))
	return
}

// SatPos is the ECEF position of satellite i at time t
func (s *Sim) SatPos(i int, t float64) Vec3 {
	r := s.Opt.OrbitRadius
	w := math.Sqrt(Mu / (r * r * r))
	raan := 2 * PI * float64(i) / float64(s.Opt.NSat)
	u := w*t + 2*PI*float64(i*3%s.Opt.NSat)/float64(s.Opt.NSat)
	return s.orbitToECEF(Vec3{X: r * math.Cos(u), Y: r * math.Sin(u)}, raan)
}

// SatVel is the ECEF velocity of satellite i at time t
func (s *Sim) SatVel(i int, t float64) Vec3 {
	r := s.Opt.OrbitRadius
	w := math.Sqrt(Mu / (r * r * r))
	raan := 2 * PI * float64(i) / float64(s.Opt.NSat)
	u := w*t + 2*PI*float64(i*3%s.Opt.NSat)/float64(s.Opt.NSat)
	return s.orbitToECEF(Vec3{X: -r * w * math.Sin(u), Y: r * w * math.Cos(u)}, raan)
}

// orbitToECEF rotates an orbital-plane vector by the inclination about x,
// then by the ascending node about z
func (s *Sim) orbitToECEF(v Vec3, raan float64) Vec3 {
	ci := math.Cos(s.Opt.Incl)
	si := math.Sin(s.Opt.Incl)
	p := Vec3{X: v.X, Y: ci * v.Y, Z: si * v.Y}
	cr := math.Cos(raan)
	sr := math.Sin(raan)
	return Vec3{
		X: cr*p.X - sr*p.Y,
		Y: sr*p.X + cr*p.Y,
		Z: p.Z,
	}
}

// Pseudorange is the observed code range to satellite i at time t [m]
func (s *Sim) Pseudorange(i int, t float64) float64 {
	return s.SatPos(i, t).Sub(s.Pos).Norm() + s.Opt.ClockBias + s.noise(s.Opt.PrNoise)
}

// Deltarange is the observed range rate against satellite i at time t,
// as the magnitude of the relative velocity of a static receiver [m/s]
func (s *Sim) Deltarange(i int, t float64) float64 {
	return s.SatVel(i, t).Norm() + s.noise(s.Opt.DrNoise)
}

// Visible lists the satellites above the elevation mask at time t
func (s *Sim) Visible(t float64) []int {
	var sats []int
	for i := 0; i < s.Opt.NSat; i++ {
		if ToDeg(Elevation(s.Pos, s.SatPos(i, t))) >= s.Opt.ElMask {
			sats = append(sats, i)
		}
	}
	return sats
}

func (s *Sim) noise(std float64) float64 {
	if std == 0 {
		return 0
	}
	return std * s.rng.NormFloat64()
}

func (s *Sim) noise3(std float64) Vec3 {
	return Vec3{X: s.noise(std), Y: s.noise(std), Z: s.noise(std)}
}
