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

// Client for the scope server's line protocol. One TCP connection per rig,
// one command in flight at a time. Commands are single lines, responses are
// single lines starting "OK" or "ERR".
package scopeclient

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/slidescope/core/core/transform"
)

type Config struct {
	Host           string
	Port           int
	DialTimeout    time.Duration
	RequestTimeout time.Duration
}

// States the scope server reports for a background acquisition job
const (
	JobStateRunning   = "RUNNING"
	JobStateDone      = "DONE"
	JobStateError     = "ERROR"
	JobStateCancelled = "CANCELLED"
)

type JobProgress struct {
	TilesDone  int
	TilesTotal int
	State      string
	Message    string // only set for ERROR
}

type AcquireRequest struct {
	JobId    string
	TileDir  string // server-side directory tiles get written to
	Cols     int
	Rows     int
	StartXUM float64
	StartYUM float64
	StepXUM  float64
	StepYUM  float64
}

// The server answered ERR - its message comes back verbatim
type ServerError struct {
	Command string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("scope server rejected %v: %v", e.Command, e.Message)
}

// IsUnknownJob - true when the server said it doesn't know the job id
func IsUnknownJob(err error) bool {
	serverErr, ok := err.(*ServerError)
	return ok && strings.Contains(serverErr.Message, "unknown job")
}

type Client struct {
	mu      sync.Mutex
	cfg     Config
	conn    net.Conn
	rdr     *bufio.Reader
	healthy bool
}

// Dial - connects with timeout and verifies the peer really is a scope server
// with a PING handshake
func Dial(cfg Config) (*Client, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	conn, err := net.DialTimeout("tcp", addr, cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to scope server %v: %v", addr, err)
	}

	client := &Client{
		cfg:     cfg,
		conn:    conn,
		rdr:     bufio.NewReader(conn),
		healthy: true,
	}

	if _, err := client.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("scope server handshake failed: %v", err)
	}

	return client, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Healthy - cheap liveness answer for the status endpoint. Doesn't touch the
// wire, just reports whether the last command poisoned the connection
func (c *Client) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy
}

// request - sends one command line, reads one response line. The mutex
// serialises callers so bytes never interleave. A deadline miss poisons the
// connection - subsequent calls fail fast until the caller redials
func (c *Client) request(command string, args ...string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.healthy {
		return nil, fmt.Errorf("scope connection to %v is down", c.cfg.Host)
	}

	line := command
	if len(args) > 0 {
		line += " " + strings.Join(args, " ")
	}

	deadline := time.Now().Add(c.cfg.RequestTimeout)
	if err := c.conn.SetDeadline(deadline); err != nil {
		c.healthy = false
		return nil, err
	}

	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.healthy = false
		return nil, fmt.Errorf("failed to send %v: %v", command, err)
	}

	resp, err := c.rdr.ReadString('\n')
	if err != nil {
		c.healthy = false
		return nil, fmt.Errorf("no response to %v: %v", command, err)
	}

	resp = strings.TrimRight(resp, "\r\n")
	fields := strings.Fields(resp)
	if len(fields) < 1 {
		c.healthy = false
		return nil, fmt.Errorf("empty response to %v", command)
	}

	switch fields[0] {
	case "OK":
		return fields[1:], nil
	case "ERR":
		// Server errors don't poison the connection, the protocol is still in sync
		msg := strings.TrimSpace(strings.TrimPrefix(resp, "ERR"))
		return nil, &ServerError{Command: command, Message: msg}
	}

	c.healthy = false
	return nil, fmt.Errorf("garbled response to %v: %q", command, resp)
}

func formatUM(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func parseFloatField(fields []string, idx int, command string) (float64, error) {
	if idx >= len(fields) {
		return 0, fmt.Errorf("short response to %v: %v fields", command, len(fields))
	}
	v, err := strconv.ParseFloat(fields[idx], 64)
	if err != nil {
		return 0, fmt.Errorf("bad number in %v response: %q", command, fields[idx])
	}
	return v, nil
}

// Position - current stage position in micrometers
func (c *Client) Position() (transform.Point, error) {
	fields, err := c.request("GETXY")
	if err != nil {
		return transform.Point{}, err
	}

	x, err := parseFloatField(fields, 0, "GETXY")
	if err != nil {
		return transform.Point{}, err
	}
	y, err := parseFloatField(fields, 1, "GETXY")
	if err != nil {
		return transform.Point{}, err
	}
	return transform.Point{X: x, Y: y}, nil
}

func (c *Client) PositionZ() (float64, error) {
	fields, err := c.request("GETZ")
	if err != nil {
		return 0, err
	}
	return parseFloatField(fields, 0, "GETZ")
}

// MoveTo - blocking stage move, the server only answers once motion completes
func (c *Client) MoveTo(xUM float64, yUM float64) error {
	_, err := c.request("MOVE", formatUM(xUM), formatUM(yUM))
	return err
}

func (c *Client) MoveZ(zUM float64) error {
	_, err := c.request("MOVEZ", formatUM(zUM))
	return err
}

func (c *Client) SetObjective(name string) error {
	_, err := c.request("SETOBJ", name)
	return err
}

// Snap - captures one image to the given server-side path, returns the path
// the server actually wrote
func (c *Client) Snap(path string) (string, error) {
	fields, err := c.request("SNAP", path)
	if err != nil {
		return "", err
	}
	if len(fields) < 1 {
		return "", fmt.Errorf("short response to SNAP: no path")
	}
	return fields[0], nil
}

// StartAcquire - kicks off a background tile acquisition on the server side.
// The server walks the grid itself, we just poll Progress after this
func (c *Client) StartAcquire(req AcquireRequest) (string, error) {
	fields, err := c.request("BGACQUIRE",
		req.JobId,
		req.TileDir,
		strconv.Itoa(req.Cols),
		strconv.Itoa(req.Rows),
		formatUM(req.StartXUM),
		formatUM(req.StartYUM),
		formatUM(req.StepXUM),
		formatUM(req.StepYUM),
	)
	if err != nil {
		return "", err
	}
	if len(fields) < 1 {
		return "", fmt.Errorf("short response to BGACQUIRE: no job id")
	}
	return fields[0], nil
}

func (c *Client) Progress(jobId string) (JobProgress, error) {
	fields, err := c.request("PROGRESS", jobId)
	if err != nil {
		return JobProgress{}, err
	}

	if len(fields) < 3 {
		return JobProgress{}, fmt.Errorf("short response to PROGRESS: %v fields", len(fields))
	}

	done, err := strconv.Atoi(fields[0])
	if err != nil {
		return JobProgress{}, fmt.Errorf("bad number in PROGRESS response: %q", fields[0])
	}
	total, err := strconv.Atoi(fields[1])
	if err != nil {
		return JobProgress{}, fmt.Errorf("bad number in PROGRESS response: %q", fields[1])
	}

	progress := JobProgress{
		TilesDone:  done,
		TilesTotal: total,
		State:      fields[2],
	}

	switch progress.State {
	case JobStateRunning, JobStateDone, JobStateError, JobStateCancelled:
	default:
		return JobProgress{}, fmt.Errorf("unknown job state in PROGRESS response: %q", progress.State)
	}

	// ERROR carries a trailing message
	if progress.State == JobStateError && len(fields) > 3 {
		progress.Message = strings.Join(fields[3:], " ")
	}

	return progress, nil
}

func (c *Client) Cancel(jobId string) error {
	_, err := c.request("CANCEL", jobId)
	return err
}

// Ping - handshake/liveness. The server identifies itself and its version
func (c *Client) Ping() (string, error) {
	fields, err := c.request("PING")
	if err != nil {
		return "", err
	}
	if len(fields) < 2 || fields[0] != "slidescope" {
		return "", fmt.Errorf("peer is not a scope server, said: %v", strings.Join(fields, " "))
	}
	return fields[1], nil
}
