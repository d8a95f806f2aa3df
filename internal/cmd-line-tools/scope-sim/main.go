// Licensed to SlideScope under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. SlideScope licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Standalone scope server simulator. Run it, point a microscope profile at
// its port, and the daemon can be driven end to end with no hardware
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slidescope/core/core/logger"
	"github.com/slidescope/core/core/scopesim"
)

var addr string
var writeTiles bool

func main() {
	flag.StringVar(&addr, "addr", "127.0.0.1:9100", "Address to listen on")
	flag.BoolVar(&writeTiles, "writeTiles", true, "Write dummy tile images during simulated acquisitions")

	flag.Parse()

	sim, err := scopesim.Listen(addr)
	if err != nil {
		log.Fatalf("Failed to listen on %v: %v", addr, err)
	}
	sim.WriteTiles = writeTiles
	sim.TileDelay = 250 * time.Millisecond

	// Show the protocol chatter, that's the whole point of running this by hand
	simLog := &logger.StdErrLogger{}
	simLog.SetLogLevel(logger.LogDebug)
	sim.Log = simLog

	fmt.Printf("Scope simulator %v listening on %v\n", scopesim.Version, sim.Addr())

	// Run until interrupted
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	sim.Close()
}
