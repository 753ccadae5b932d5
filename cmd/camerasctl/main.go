// Camera arbitration control tool.
//
// Lets an interactive calibration session take exclusive camera ownership
// away from the supervised telemetry processes and hand it back:
//
//	camerasctl acquire bridge   stop bridge supervisor+telemetry, hold camera
//	camerasctl release bridge   drop the hold; relaunch telemetry once no
//	                            circuit is held anymore
//	camerasctl status           print both circuit states
//
// Ownership state lives in the runtime record directory, so invocations
// compose across processes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cranevision/pose-telemetry/internal/arbiter"
	"github.com/cranevision/pose-telemetry/internal/logger"
	"github.com/cranevision/pose-telemetry/internal/runstate"
	"github.com/cranevision/pose-telemetry/pkg/types"
)

var (
	runtimeDir = flag.String("runtime-dir", runstate.DefaultDir, "Directory for liveness records")
	bridgeCmd  = flag.String("bridge-cmd", "./posesupervisor -circuit bridge -- ./bridgepose", "Relaunch command for the bridge supervisor")
	hookCmd    = flag.String("hook-cmd", "./posesupervisor -circuit hook -- ./hookpose", "Relaunch command for the hook supervisor")
	timeout    = flag.Duration("timeout", 10*time.Second, "Overall deadline for a stop sequence")
	logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error, silent)")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: camerasctl [flags] acquire|release|status [bridge|hook]\n")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, false)

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	ctl := arbiter.NewController(*runtimeDir, map[types.Circuit][]string{
		types.CircuitBridge: strings.Fields(*bridgeCmd),
		types.CircuitHook:   strings.Fields(*hookCmd),
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch args[0] {
	case "status":
		for _, c := range []types.Circuit{types.CircuitBridge, types.CircuitHook} {
			fmt.Printf("%s: %s\n", c, ctl.CircuitState(c))
		}
	case "acquire":
		c := circuitArg(args)
		if err := ctl.AcquireCircuit(ctx, c); err != nil {
			log.Fatalf("acquire %s: %v", c, err)
		}
		fmt.Printf("%s: %s\n", c, ctl.CircuitState(c))
	case "release":
		c := circuitArg(args)
		if err := ctl.ReleaseCircuit(c); err != nil {
			log.Fatalf("release %s: %v", c, err)
		}
		fmt.Printf("%s: %s\n", c, ctl.CircuitState(c))
	default:
		usage()
	}
}

func circuitArg(args []string) types.Circuit {
	if len(args) < 2 {
		usage()
	}
	c := types.Circuit(args[1])
	if c != types.CircuitBridge && c != types.CircuitHook {
		usage()
	}
	return c
}
