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

// A simulated scope server speaking the real line protocol. Used by unit
// tests to stand in for rig hardware, and by the scope-sim command for local
// development against the daemon.
package scopesim

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/slidescope/core/core/logger"
)

const Version = "1.2.0"

type simJob struct {
	cols      int
	rows      int
	tilesDone int
	state     string
	message   string
	cancelled bool
}

type Simulator struct {
	listener net.Listener

	mu   sync.Mutex
	posX float64
	posY float64
	posZ float64
	obj  string
	jobs map[string]*simJob
	done chan struct{}
	fail map[string]string // command -> ERR message to inject

	// TileDelay is how long the fake stage spends per tile. Tests keep this
	// tiny, the scope-sim command defaults it to something watchable
	TileDelay time.Duration

	// WriteTiles makes BGACQUIRE actually write dummy .tif files to the
	// requested directory, so archive paths can be exercised
	WriteTiles bool

	// Log gets every command and reply at debug level. Defaults to a null
	// logger, assign before any client connects to change it
	Log logger.ILogger
}

// Listen - starts the simulator on an address like "127.0.0.1:0". Serving
// starts immediately on a background goroutine
func Listen(addr string) (*Simulator, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	sim := &Simulator{
		listener:  listener,
		obj:       "10x",
		jobs:      map[string]*simJob{},
		done:      make(chan struct{}),
		fail:      map[string]string{},
		TileDelay: time.Millisecond,
		Log:       &logger.NullLogger{},
	}

	go sim.acceptLoop()
	return sim, nil
}

func (s *Simulator) Addr() string {
	return s.listener.Addr().String()
}

// Port - convenience for building a scopeclient.Config against the sim
func (s *Simulator) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *Simulator) Close() {
	close(s.done)
	s.listener.Close()
}

// FailNext - makes the named command answer ERR with the given message until
// cleared. Lets tests exercise the daemon's error paths
func (s *Simulator) FailNext(command string, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[command] = message
}

func (s *Simulator) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = map[string]string{}
}

func (s *Simulator) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}
		go s.serveConn(conn)
	}
}

func (s *Simulator) serveConn(conn net.Conn) {
	defer conn.Close()
	s.Log.Infof("Client connected from %v", conn.RemoteAddr())

	rdr := bufio.NewReader(conn)
	for {
		line, err := rdr.ReadString('\n')
		if err != nil {
			return
		}

		resp := s.handle(strings.Fields(strings.TrimSpace(line)))
		s.Log.Debugf("%v -> %v", strings.TrimSpace(line), resp)
		if _, err := conn.Write([]byte(resp + "\n")); err != nil {
			return
		}
	}
}

func (s *Simulator) handle(fields []string) string {
	if len(fields) == 0 {
		return "ERR empty command"
	}

	command := fields[0]
	args := fields[1:]

	s.mu.Lock()
	if msg, ok := s.fail[command]; ok {
		s.mu.Unlock()
		return "ERR " + msg
	}
	s.mu.Unlock()

	switch command {
	case "PING":
		return "OK slidescope " + Version

	case "GETXY":
		s.mu.Lock()
		defer s.mu.Unlock()
		return fmt.Sprintf("OK %.3f %.3f", s.posX, s.posY)

	case "GETZ":
		s.mu.Lock()
		defer s.mu.Unlock()
		return fmt.Sprintf("OK %.3f", s.posZ)

	case "MOVE":
		if len(args) < 2 {
			return "ERR MOVE needs x y"
		}
		x, errX := strconv.ParseFloat(args[0], 64)
		y, errY := strconv.ParseFloat(args[1], 64)
		if errX != nil || errY != nil {
			return "ERR MOVE bad coordinates"
		}
		s.mu.Lock()
		s.posX, s.posY = x, y
		s.mu.Unlock()
		return "OK"

	case "MOVEZ":
		if len(args) < 1 {
			return "ERR MOVEZ needs z"
		}
		z, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return "ERR MOVEZ bad coordinate"
		}
		s.mu.Lock()
		s.posZ = z
		s.mu.Unlock()
		return "OK"

	case "SETOBJ":
		if len(args) < 1 {
			return "ERR SETOBJ needs a name"
		}
		s.mu.Lock()
		s.obj = args[0]
		s.mu.Unlock()
		return "OK"

	case "SNAP":
		if len(args) < 1 {
			return "ERR SNAP needs a path"
		}
		if s.WriteTiles {
			if err := writeDummyImage(args[0]); err != nil {
				return "ERR " + err.Error()
			}
		}
		return "OK " + args[0]

	case "BGACQUIRE":
		return s.handleAcquire(args)

	case "PROGRESS":
		if len(args) < 1 {
			return "ERR PROGRESS needs a job id"
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		job, ok := s.jobs[args[0]]
		if !ok {
			return "ERR unknown job"
		}
		if job.state == "ERROR" {
			return fmt.Sprintf("OK %v %v ERROR %v", job.tilesDone, job.cols*job.rows, job.message)
		}
		return fmt.Sprintf("OK %v %v %v", job.tilesDone, job.cols*job.rows, job.state)

	case "CANCEL":
		if len(args) < 1 {
			return "ERR CANCEL needs a job id"
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		job, ok := s.jobs[args[0]]
		if !ok {
			return "ERR unknown job"
		}
		job.cancelled = true
		return "OK"
	}

	return "ERR unknown command " + command
}

func (s *Simulator) handleAcquire(args []string) string {
	if len(args) < 8 {
		return "ERR BGACQUIRE needs jobid path cols rows startx starty stepx stepy"
	}

	jobId := args[0]
	tileDir := args[1]
	cols, errC := strconv.Atoi(args[2])
	rows, errR := strconv.Atoi(args[3])
	if errC != nil || errR != nil || cols < 1 || rows < 1 {
		return "ERR BGACQUIRE bad grid size"
	}

	s.mu.Lock()
	if _, exists := s.jobs[jobId]; exists {
		s.mu.Unlock()
		return "ERR job already exists"
	}

	job := &simJob{cols: cols, rows: rows, state: "RUNNING"}
	s.jobs[jobId] = job
	s.mu.Unlock()

	go s.runJob(job, tileDir)

	return "OK " + jobId
}

// The fake stage walk - one tile per TileDelay tick, honouring cancellation
func (s *Simulator) runJob(job *simJob, tileDir string) {
	total := job.cols * job.rows

	for i := 0; i < total; i++ {
		select {
		case <-s.done:
			return
		case <-time.After(s.TileDelay):
		}

		s.mu.Lock()
		if job.cancelled {
			job.state = "CANCELLED"
			s.mu.Unlock()
			return
		}

		col := i % job.cols
		row := i / job.cols
		s.mu.Unlock()

		if s.WriteTiles {
			path := filepath.Join(tileDir, fmt.Sprintf("tile_%v_%v.tif", col, row))
			if err := writeDummyImage(path); err != nil {
				s.mu.Lock()
				job.state = "ERROR"
				job.message = err.Error()
				s.mu.Unlock()
				return
			}
		}

		s.mu.Lock()
		job.tilesDone++
		s.mu.Unlock()
	}

	s.mu.Lock()
	job.state = "DONE"
	s.mu.Unlock()
}

func writeDummyImage(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return err
	}
	// Not a real TIFF, just enough bytes for archive tests to move around
	return os.WriteFile(path, []byte("II*\x00simulated tile"), 0666)
}
