// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.3
//

package goins

// Opt contains the process-noise parameters of the filter.
// All vector entries are variances accumulated per second of propagation.
// Supplied at construction and constant thereafter.
type Opt struct {
	GyroStabilityNoise  Vec3    // Gyro bias random walk [(rad/s)^2/s]
	GyroWhiteNoise      Vec3    // Gyro white noise [rad^2/s]
	AccelWhiteNoise     Vec3    // Accelerometer white noise [(m/s)^2/s]
	AccelStabilityNoise Vec3    // Accelerometer bias random walk [(m/s^2)^2/s]
	ClockStabilityNoise float64 // Receiver clock random walk [m^2/s]
	AccelGravityNorm    float64 // Local gravity magnitude [m/s^2]
}

// NewOpt returns process-noise defaults for a consumer-grade MEMS IMU
// and a TCXO receiver clock
func NewOpt() *Opt {
	return &Opt{
		GyroStabilityNoise:  Vec3{X: 1e-10, Y: 1e-10, Z: 1e-10}, // ~0.03 deg/s bias drift over 1 h
		GyroWhiteNoise:      Vec3{X: 1e-6, Y: 1e-6, Z: 1e-6},    // ~3.4 deg/sqrt(h) angle random walk
		AccelWhiteNoise:     Vec3{X: 1e-3, Y: 1e-3, Z: 1e-3},    // ~0.03 (m/s)/sqrt(s) velocity random walk
		AccelStabilityNoise: Vec3{X: 1e-8, Y: 1e-8, Z: 1e-8},    // ~0.006 m/s^2 bias drift over 1 h
		ClockStabilityNoise: 1.0,                                // ~1 m/sqrt(s) clock wander
		AccelGravityNorm:    G0,
	}
}
