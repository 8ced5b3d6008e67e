// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.4
//

// Runs the INS/GNSS filter against a simulated static receiver and writes
// the navigation solution as CSV. Optionally serves the live solution to
// websocket clients.

package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	m "github.com/mkhts/goins"
	"github.com/mkhts/goins/navweb"
)

func main() {

	// Parse command line arguments
	args, err := parseArgs()
	if err != nil {
		flag.Usage()
		os.Exit(1)
	}

	// Run the main application
	if err := runApplication(args); err != nil {
		log.WithError(err).Error("run failed")
		os.Exit(1)
	}
}

type cmdOpt struct {
	dur       float64   // Simulated duration [s]
	imuRate   float64   // IMU sample rate [Hz]
	gpsRate   float64   // GNSS epoch rate [Hz]
	llh       m.PosLLH  // True receiver location
	nsat      int       // Constellation size
	seed      int64     // Noise seed
	obsTypes  obsVar    // Enabled observation types
	prNoise   float64   // Pseudorange noise std [m]
	drNoise   float64   // Deltarange noise std [m/s]
	gyroBias  float64   // True gyro bias per axis [deg/s]
	accelBias float64   // True accel bias per axis [m/s^2]
	clockBias float64   // True receiver clock bias [m]
	posFn     string    // Output file, stdout if empty
	listen    string    // navweb listen address, off if empty
	debug     int       // Debug print level
}

// obsVar parses a comma separated observation type list for flag
type obsVar []string

func (p *obsVar) Set(s string) error {
	*p = obsVar{}
	for _, a := range strings.Split(s, ",") {
		switch a {
		case "pr", "dr", "vec", "pv":
			*p = append(*p, a)
		default:
			return fmt.Errorf("unknown observation type %q", a)
		}
	}
	return nil
}

func (p *obsVar) String() string {
	return strings.Join(*p, ",")
}

func parseArgs() (a cmdOpt, err error) {
	a.llh = m.PosLLH{Lat: m.ToRad(36.0), Lon: m.ToRad(140.0), Hei: 100}
	a.obsTypes = obsVar{"pr", "dr", "vec"}

	flag.Float64Var(&a.dur, "t", 300, "simulated duration [s]")
	flag.Float64Var(&a.imuRate, "imurate", 100, "IMU sample rate [Hz]")
	flag.Float64Var(&a.gpsRate, "gpsrate", 1, "GNSS epoch rate [Hz]")
	flag.Var(&a.llh, "llh", "receiver location \"lat lon hei\" [deg deg m]")
	flag.IntVar(&a.nsat, "nsat", 8, "constellation size")
	flag.Int64Var(&a.seed, "seed", 1, "noise seed")
	flag.Var(&a.obsTypes, "obs", "observation types to fuse (pr,dr,vec,pv)")
	flag.Float64Var(&a.prNoise, "prnoise", 2.0, "pseudorange noise std [m]")
	flag.Float64Var(&a.drNoise, "drnoise", 0.1, "deltarange noise std [m/s]")
	flag.Float64Var(&a.gyroBias, "gyrobias", 0.1, "true gyro bias per axis [deg/s]")
	flag.Float64Var(&a.accelBias, "accelbias", 0.05, "true accel bias per axis [m/s^2]")
	flag.Float64Var(&a.clockBias, "clockbias", 30, "true receiver clock bias [m]")
	flag.StringVar(&a.posFn, "o", "", "output file (default stdout)")
	flag.StringVar(&a.listen, "listen", "", "serve live solution on this address (e.g. :8000)")
	flag.IntVar(&a.debug, "debug", 0, "debug print level")
	flag.Parse()

	if a.dur <= 0 || a.imuRate <= 0 || a.gpsRate <= 0 {
		return a, fmt.Errorf("durations and rates must be positive")
	}
	m.DBG_ = a.debug
	return a, nil
}

// Main application processing
func runApplication(args cmdOpt) error {

	sim, kf := buildScenario(args)

	out, err := prepareOutput(args)
	if err != nil {
		return fmt.Errorf("prepareOutput() failed, err=%w", err)
	}
	defer out.Close()

	room := startWeb(args)

	return processEpochs(args, sim, kf, out, room)
}

// Build the simulated scenario and the seeded filter
func buildScenario(args cmdOpt) (*m.Sim, *m.Qkf) {
	simOpt := m.NewSimOpt()
	simOpt.LLH = args.llh
	simOpt.NSat = args.nsat
	simOpt.Seed = args.seed
	simOpt.PrNoise = args.prNoise
	simOpt.DrNoise = args.drNoise
	simOpt.GyroBias = m.Vec3{X: m.ToRad(args.gyroBias), Y: m.ToRad(args.gyroBias), Z: m.ToRad(args.gyroBias)}
	simOpt.AccelBias = m.Vec3{X: args.accelBias, Y: args.accelBias, Z: args.accelBias}
	simOpt.ClockBias = args.clockBias
	sim := m.NewSim(simOpt)

	kf := m.NewQkf(m.NewOpt())

	log.WithFields(log.Fields{
		"llh":  args.llh.String(),
		"nsat": args.nsat,
		"dur":  args.dur,
	}).Info("scenario ready")
	return sim, kf
}

// Prepare output file
func prepareOutput(args cmdOpt) (io.WriteCloser, error) {
	if len(args.posFn) == 0 {
		return nopCloser{os.Stdout}, nil
	}
	posf, err := os.Create(args.posFn)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return posf, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Start the websocket room when -listen is given
func startWeb(args cmdOpt) *navweb.Room {
	if args.listen == "" {
		return nil
	}
	room := navweb.NewRoom()
	go room.Run()
	http.Handle("/navweb", room)
	go func() {
		log.WithField("addr", args.listen).Info("navweb listening")
		if err := http.ListenAndServe(args.listen, nil); err != nil {
			log.WithError(err).Error("navweb server stopped")
		}
	}()
	return room
}

// Run the IMU/GNSS fusion loop over the simulated mission
func processEpochs(args cmdOpt, sim *m.Sim, kf *m.Qkf, out io.Writer, room *navweb.Room) error {

	// Seed the filter from the scenario truth, with honest uncertainty
	if err := kf.InitPosition(sim.Pos, m.Vec3{X: m.SQ(100), Y: m.SQ(100), Z: m.SQ(100)}); err != nil {
		return fmt.Errorf("InitPosition() failed, err=%w", err)
	}
	if err := kf.InitVelocity(m.Vec3{}, m.Vec3{X: 1, Y: 1, Z: 1}); err != nil {
		return fmt.Errorf("InitVelocity() failed, err=%w", err)
	}

	fmt.Fprintln(out, "% t[s], lat[deg], lon[deg], hei[m], vx, vy, vz [m/s], clk[m], gbias[deg/s], abias[m/s^2], ptrace[m^2]")

	dt := 1 / args.imuRate
	gpsEvery := int(args.imuRate / args.gpsRate)
	if gpsEvery < 1 {
		gpsEvery = 1
	}
	steps := int(args.dur * args.imuRate)

	for i := 0; i < steps; i++ {
		t := float64(i) * dt

		gyro, accel := sim.Imu()
		if err := kf.PredictECEF(gyro, accel, dt); err != nil {
			return fmt.Errorf("PredictECEF() failed at t=%.2f, err=%w", t, err)
		}

		if i%gpsEvery != 0 {
			continue
		}

		if err := fuseEpoch(args, sim, kf, t); err != nil {
			return fmt.Errorf("fuseEpoch() failed at t=%.2f, err=%w", t, err)
		}

		writeSolution(out, kf, t)
		if room != nil {
			room.Broadcast(navweb.NewNavData(t, kf))
		}
		if int(t)%10 == 0 {
			logProgress(kf, t)
		}
	}

	log.Info("mission complete")
	return nil
}

// Fuse one GNSS epoch plus the gravity-vector aiding
func fuseEpoch(args cmdOpt, sim *m.Sim, kf *m.Qkf, t float64) error {
	sats := sim.Visible(t)

	if slices.Contains(args.obsTypes, "pr") {
		accum := m.NewPosClockAccum()
		for _, i := range sats {
			err := kf.ObsGpsPseudorange(accum, sim.SatPos(i, t), sim.Pseudorange(i, t), m.SQ(args.prNoise)+1)
			if err != nil {
				return err
			}
		}
		if err := kf.ApplyPosClock(accum); err != nil {
			return err
		}
	}

	if slices.Contains(args.obsTypes, "dr") {
		accum := m.NewInertialAccum()
		for _, i := range sats {
			err := kf.ObsGpsDeltarange(accum, sim.SatVel(i, t), sim.Deltarange(i, t), m.SQ(args.drNoise)+0.01)
			if err != nil {
				return err
			}
		}
		if err := kf.ApplyInertial(accum); err != nil {
			return err
		}
	}

	if slices.Contains(args.obsTypes, "vec") {
		// Gravity-aided tilt: the accelerometer of a static receiver points
		// along the local up
		_, accel := sim.Imu()
		body := accel.Sub(kf.AvgState.AccelBias)
		if err := kf.ObsVector(kf.AvgState.Position.Normalized(), body.Normalized(), 1e-2); err != nil {
			return err
		}
	}

	if slices.Contains(args.obsTypes, "pv") {
		err := kf.ObsGpsPvReport(sim.Pos, m.Vec3{},
			m.Vec3{X: m.SQ(5), Y: m.SQ(5), Z: m.SQ(5)},
			m.Vec3{X: m.SQ(0.2), Y: m.SQ(0.2), Z: m.SQ(0.2)})
		if err != nil {
			return err
		}
	}

	return nil
}

// Write one CSV solution row
func writeSolution(out io.Writer, kf *m.Qkf, t float64) {
	s := &kf.AvgState
	llh := m.ToLLH(s.Position)
	var ptrace float64
	for i := 0; i < 3; i++ {
		ptrace += kf.PtCov.At(i, i)
	}
	fmt.Fprintf(out, "%8.2f, %12.8f, %12.8f, %8.3f, %8.4f, %8.4f, %8.4f, %8.3f, %9.5f, %8.5f, %12.4f\n",
		t, m.ToDeg(llh.Lat), m.ToDeg(llh.Lon), llh.Hei,
		s.Velocity.X, s.Velocity.Y, s.Velocity.Z,
		s.ClockBias, m.ToDeg(s.GyroBias.Norm()), s.AccelBias.Norm(), ptrace)
}

// Periodic progress to the operator
func logProgress(kf *m.Qkf, t float64) {
	var ptrace float64
	for i := 0; i < 3; i++ {
		ptrace += kf.PtCov.At(i, i)
	}
	log.WithFields(log.Fields{
		"t":      fmt.Sprintf("%.0f", t),
		"ptrace": fmt.Sprintf("%.1f", ptrace),
		"clk":    fmt.Sprintf("%.2f", kf.AvgState.ClockBias),
	}).Info("epoch")
}
