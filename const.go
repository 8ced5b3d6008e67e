// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.2
//

package goins

import "math"

const (
	PI = 3.1415926535897932  // Pi
	C  = 2.99792458e8        // Speed of light [m/s]
	Re = 6378137.0           // Earth's radius [m]
	Fe = 1.0 / 298.257223563 // Earth's flattening
	Mu = 3.986005e14         // Earth gravitational constant [m^3/s^2]
	G0 = 9.80665             // Standard gravity [m/s^2]
)

// Default a-priori error bounds of a freshly built filter
const (
	GyroBiasStd0  = 3.0 * PI / 180 // Gyro bias [rad/s]
	AccelBiasStd0 = 0.3            // Accelerometer bias [m/s^2]
	AttVar0       = PI * PI * 0.5  // Attitude error [rad^2], unknown orientation
	VelVar0       = 100.0          // Velocity [m^2/s^2]
	PosStd0       = 100e3          // Position [m]
	ClockBiasStd0 = 300.0          // Receiver clock bias [m], about 1 us at the speed of light
)

// Machine epsilon of the reference single precision covariance arithmetic.
// The invariant tolerances below were derived from it and keep their values.
const Eps32 = 1.1920929e-7

// Unit quaternion norm tolerance. Incremental normalization must keep the
// orientation within this distance of unit norm.
var QuatNormTol = math.Sqrt(1000 * Eps32)

// Threshold for the tangent basis fallback in ObsVector. Tuning constant.
var VecObsBasisEps = math.Sqrt(1000 * Eps32)
