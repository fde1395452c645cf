package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"

	"github.com/visionlab/onelight/calibration"
	"github.com/visionlab/onelight/correction"
	"github.com/visionlab/onelight/gamut"
	"github.com/visionlab/onelight/sim"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "olcorrect.yml"
	k              = koanf.New(".")
)

// Config holds the run parameters for a simulated correction.
type Config struct {
	// CalFile is the path to the calibration yaml; empty synthesizes an
	// identity calibration of Size primaries
	CalFile string `koanf:"calfile" yaml:"calfile"`

	// Size of the synthetic calibration when CalFile is empty
	Size int `koanf:"size" yaml:"size"`

	// TargetLevel is the flat target SPD level
	TargetLevel float64 `koanf:"targetLevel" yaml:"targetLevel"`

	// Seed primaries; empty resolves the seed from the target
	Seed []float64 `koanf:"seed" yaml:"seed"`

	// Noise is the simulated radiometer noise stddev
	Noise float64 `koanf:"noise" yaml:"noise"`

	// Drift is the simulated per-measurement lamp droop
	Drift float64 `koanf:"drift" yaml:"drift"`

	// FailOnCall injects a measurement failure on the nth call, 0 for none
	FailOnCall int `koanf:"failOnCall" yaml:"failOnCall"`

	NIterations          int     `koanf:"nIterations" yaml:"nIterations"`
	LearningRate         float64 `koanf:"learningRate" yaml:"learningRate"`
	LearningRateDecrease bool    `koanf:"learningRateDecrease" yaml:"learningRateDecrease"`
	DecayFactor          float64 `koanf:"decayFactor" yaml:"decayFactor"`
	Smoothness           float64 `koanf:"smoothness" yaml:"smoothness"`
	IterativeRefinement  bool    `koanf:"iterativeRefinement" yaml:"iterativeRefinement"`
}

func defaults() Config {
	p := correction.DefaultParams()
	return Config{
		Size:                 16,
		TargetLevel:          0.5,
		NIterations:          p.NIterations,
		LearningRate:         p.LearningRate,
		LearningRateDecrease: p.LearningRateDecrease,
		DecayFactor:          p.DecayFactor,
		Smoothness:           p.Smoothness,
		IterativeRefinement:  p.IterativeRefinement}
}

func setupconfig() {
	k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `olcorrect runs spectral correction sequences against a simulated OneLight rig.
It exists to exercise the correction loop end to end, tune iteration budgets,
and reproduce trouble seen on the real bench without burning lamp hours.

Usage:
	olcorrect <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `olcorrect is configured via its .yml file, see mkconf for a starting point.

The simulated rig is exactly linear in the calibration's primary basis.  With
noise and drift at zero a run converges to machine precision; setting them to
bench-realistic values (noise ~1e-4, drift ~1e-3) shows why the best iterate
is selected post hoc instead of trusting the last one.

failOnCall injects a radiometer failure partway through a run to demonstrate
the partial-trace behavior.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("olcorrect version %v\n", Version)
}

func loadCal(c Config) (*calibration.Calibration, error) {
	if c.CalFile != "" {
		return calibration.LoadYaml(c.CalFile)
	}
	rows := make([][]float64, c.Size)
	for i := range rows {
		rows[i] = make([]float64, c.Size)
		rows[i][i] = 1
	}
	return calibration.New(
		calibration.Description{Device: "synthetic"},
		rows, make([]float64, c.Size),
		calibration.Sampling{Start: 380, Step: 2, Count: c.Size},
		gamut.Unipolar, 1)
}

func run() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	cal, err := loadCal(c)
	if err != nil {
		log.Fatal(err)
	}
	rig := sim.New(cal, 1)
	rig.Noise = c.Noise
	rig.Drift = c.Drift
	rig.FailOnCall = c.FailOnCall

	target := make([]float64, cal.NSamples())
	for i := range target {
		target[i] = c.TargetLevel
	}
	params := correction.Params{
		NIterations:          c.NIterations,
		LearningRate:         c.LearningRate,
		LearningRateDecrease: c.LearningRateDecrease,
		DecayFactor:          c.DecayFactor,
		Smoothness:           c.Smoothness,
		IterativeRefinement:  c.IterativeRefinement}

	logger := log.New(os.Stderr, "olcorrect ", log.LstdFlags)
	loop, err := correction.NewSpdLoop(rig, cal, params, target, c.Seed, logger)
	if err != nil {
		log.Fatal(err)
	}
	res, err := loop.Run()
	for _, it := range res.Trace.Iterations() {
		fmt.Printf("iter %2d  rate %.3f  rms %.6g  truncated %v\n",
			it.Index, it.LearningRate, it.RMSError, it.Truncated)
	}
	if err != nil {
		log.Fatalf("run ended %v: %v", res.Status, err)
	}
	fmt.Printf("status %v, best iteration %d\n", res.Status, res.BestIteration)
	fmt.Printf("corrected primaries: %v\n", res.CorrectedPrimaries)
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "run":
		run()
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "version":
		pversion()
	default:
		root()
	}
}
