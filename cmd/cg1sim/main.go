// Command cg1sim is the cycle-accurate functional simulator's entry
// point: it loads an architecture-parameter CSV and a meta-stream trace
// file, builds a pipeline.Pipeline from them, and runs it for a number
// of frames or cycles.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cg1sim/cg1sim/cg1log"
	"github.com/cg1sim/cg1sim/cgerr"
	"github.com/cg1sim/cg1sim/paramfile"
	"github.com/cg1sim/cg1sim/pipeline"
	"github.com/cg1sim/cg1sim/tracefile"
)

// cyclesMagnitudeThreshold is the positional-argument disambiguation
// rule spec.md §6 names: a bare numeric argument at or above this value
// is a cycle count, below it a frame count.
const cyclesMagnitudeThreshold = 10000

// defaultParamSearchPaths is tried, in order, when --param is not given
// (spec.md §6: "auto-searched in CWD and several relative paths").
var defaultParamSearchPaths = []string{
	"arch_params.csv",
	"./config/arch_params.csv",
	"../config/arch_params.csv",
}

type options struct {
	config string
	param  string
	trace  string

	fm, am     bool
	debug      bool
	valid      bool
	start      uint64
	frames     uint64
	cycles     uint64
	haveFrames bool
	haveCycles bool
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "cg1sim: %v\n", err)
		os.Exit(-1)
	}

	cg1log.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	code := run(opts)
	os.Exit(code)
}

func parseArgs(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("cg1sim", flag.ContinueOnError)
	fs.StringVar(&o.config, "config", "CG1GPU.ini", "architecture-variant column in the parameter CSV")
	fs.StringVar(&o.param, "param", "", "parameter CSV path")
	fs.BoolVar(&o.fm, "fm", true, "select the functional-timing model")
	fs.BoolVar(&o.am, "am", false, "select the architectural model, if compiled in")
	fs.BoolVar(&o.debug, "debug", false, "enter an interactive step-through loop")
	fs.BoolVar(&o.valid, "valid", false, "enter a validation-assistance loop")
	fs.Uint64Var(&o.start, "start", 0, "first frame producing output")
	var frames, cycles uint64
	fs.Uint64Var(&frames, "frames", 0, "number of frames to simulate (0: use --cycles)")
	fs.Uint64Var(&cycles, "cycles", 0, "number of cycles to simulate")
	fs.StringVar(&o.trace, "trace", "", "input trace file")
	if err := fs.Parse(args); err != nil {
		return o, cgerr.NewConfigError("cli", "parsing arguments", err)
	}
	o.haveFrames = frames != 0
	o.haveCycles = cycles != 0
	o.frames, o.cycles = frames, cycles

	positional := fs.Args()
	if len(positional) > 0 && o.trace == "" {
		o.trace = positional[0]
	}
	if len(positional) > 1 {
		n, err := strconv.ParseUint(positional[1], 0, 64)
		if err != nil {
			return o, cgerr.NewConfigError("cli", "positional frames/cycles argument", err)
		}
		if n >= cyclesMagnitudeThreshold {
			o.cycles, o.haveCycles = n, true
		} else {
			o.frames, o.haveFrames = n, true
		}
	}
	if len(positional) > 2 {
		n, err := strconv.ParseUint(positional[2], 0, 64)
		if err != nil {
			return o, cgerr.NewConfigError("cli", "positional start-frame argument", err)
		}
		o.start = n
	}

	if o.param == "" {
		o.param = locateParamFile()
	}
	return o, nil
}

func locateParamFile() string {
	for _, p := range defaultParamSearchPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return defaultParamSearchPaths[0]
}

// run executes the simulation and returns a process exit code (spec.md
// §6: 0 normal, -1 hard failure, 1 missing parameter file).
func run(o options) int {
	if _, err := os.Stat(o.param); err != nil {
		fmt.Fprintf(os.Stderr, "cg1sim: parameter file %q not found\n", o.param)
		return 1
	}

	store, err := paramfile.Load(o.param, o.config, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cg1sim: %v\n", err)
		return -1
	}

	if o.trace == "" {
		fmt.Fprintln(os.Stderr, "cg1sim: no trace file given")
		return -1
	}
	reader, closer, err := tracefile.OpenReader(o.trace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cg1sim: %v\n", err)
		return -1
	}
	defer closer.Close()

	cfg := buildConfig(store)
	mem := pipeline.NewSimMemory(0)
	p, err := pipeline.New(cfg, reader, mem)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cg1sim: %v\n", err)
		return -1
	}

	handler := pipeline.NewSignalHandler(p.Counters, nil)
	handler.Start()
	defer handler.Stop()

	n := resolveStepCount(o)
	if err := p.Run(n, handler.Aborted); err != nil {
		fmt.Fprintf(os.Stderr, "cg1sim: %v\n", err)
		return -1
	}

	fmt.Printf("cg1sim: completed %d cycles, %d triangles assembled, %d fragments shaded\n",
		p.Stats.Cycles, p.Stats.TrianglesAssembled, p.Stats.FragmentsShaded)
	return 0
}

// resolveStepCount turns the frames/cycles options into a cycle count
// to feed Pipeline.Run. A cycles-per-frame estimate would normally come
// from the loaded parameters; absent that this module treats one frame
// as one cycle boundary request and relies on --cycles for precise
// control, matching spec.md §6's own fallback ("0 => use --cycles").
func resolveStepCount(o options) uint64 {
	if o.haveCycles {
		return o.cycles
	}
	if o.haveFrames {
		return o.frames
	}
	return cyclesMagnitudeThreshold
}
