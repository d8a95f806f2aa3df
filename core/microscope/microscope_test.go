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

package microscope

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validProfileYAML = `id: rig-a
displayName: Scanner Rig A
scopeServer:
  host: 127.0.0.1
  port: 9760
  dialTimeoutSec: 5
  requestTimeoutSec: 30
  pollIntervalMS: 1000
stage:
  minXUM: 0
  maxXUM: 75000
  minYUM: 0
  maxYUM: 25000
  settleMS: 50
  homeOnConnect: true
camera:
  pixelSizeUM: 3.45
  imageWidthPX: 1920
  imageHeightPX: 1200
objectives:
  - name: 10x
    magnification: 10
    pixelSizeUM: 0.345
  - name: 20x
    magnification: 20
    pixelSizeUM: 0.1725
defaultObjective: 20x
tiling:
  overlapPercent: 10
  serpentine: true
`

func Example_decode() {
	cfg, err := Decode([]byte(validProfileYAML))
	fmt.Println(err)
	fmt.Println(cfg.Id, cfg.DisplayName)
	fmt.Println(cfg.StageBounds())

	fovX, fovY, err := cfg.FOVUM("20x")
	fmt.Printf("%v %.1f %.1f\n", err, fovX, fovY)

	_, _, err = cfg.FOVUM("63x")
	fmt.Println(err)

	// Output:
	// <nil>
	// rig-a Scanner Rig A
	// {0 0 75000 25000}
	// <nil> 331.2 207.0
	// objective 63x not found
}

func Example_decodeUnknownField() {
	// Typo in a field name must be rejected, not ignored
	bad := strings.Replace(validProfileYAML, "overlapPercent:", "overlapPercnet:", 1)
	_, err := Decode([]byte(bad))
	fmt.Println(err != nil)

	// Output:
	// true
}

func TestValidateCatches(t *testing.T) {
	breakages := []struct {
		name    string
		mutate  func(*MicroscopeConfig)
		wantSub string
	}{
		{"no id", func(c *MicroscopeConfig) { c.Id = "" }, "missing an id"},
		{"bad port", func(c *MicroscopeConfig) { c.ScopeServer.Port = 0 }, "port"},
		{"stage x", func(c *MicroscopeConfig) { c.Stage.MaxXUM = c.Stage.MinXUM }, "stage x travel"},
		{"stage y", func(c *MicroscopeConfig) { c.Stage.MinYUM = 90000 }, "stage y travel"},
		{"pixel size", func(c *MicroscopeConfig) { c.Camera.PixelSizeUM = 0 }, "pixel size"},
		{"overlap", func(c *MicroscopeConfig) { c.Tiling.OverlapPercent = 90 }, "overlap"},
		{"no objectives", func(c *MicroscopeConfig) { c.Objectives = nil }, "at least one objective"},
		{"obj pixel size", func(c *MicroscopeConfig) { c.Objectives[0].PixelSizeUM = -1 }, "pixel size"},
		{"default objective", func(c *MicroscopeConfig) { c.DefaultObjective = "100x" }, "default objective"},
	}

	for _, b := range breakages {
		cfg, err := Decode([]byte(validProfileYAML))
		if err != nil {
			t.Fatalf("Fixture failed to decode: %v", err)
		}

		b.mutate(&cfg)
		err = cfg.Validate()
		if err == nil {
			t.Errorf("%v: expected validation error", b.name)
		} else if !strings.Contains(err.Error(), b.wantSub) {
			t.Errorf("%v: error %q does not mention %q", b.name, err, b.wantSub)
		}
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()

	writeProfile := func(name string, contents string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0644); err != nil {
			t.Fatal(err)
		}
	}

	writeProfile("rig-a.yml", validProfileYAML)
	writeProfile("rig-b.yaml", strings.Replace(validProfileYAML, "id: rig-a", "id: rig-b", 1))
	writeProfile("notes.txt", "not a profile")

	store, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}

	profiles := store.List()
	if len(profiles) != 2 || profiles[0].Id != "rig-a" || profiles[1].Id != "rig-b" {
		t.Fatalf("Got profiles: %+v", profiles)
	}

	if _, ok := store.Get("rig-b"); !ok {
		t.Errorf("rig-b not found in store")
	}
	if _, ok := store.Get("rig-z"); ok {
		t.Errorf("rig-z should not exist")
	}

	// Export round trips
	data, err := store.Export("rig-a")
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	reloaded, err := Decode(data)
	if err != nil {
		t.Fatalf("Exported YAML failed to decode: %v", err)
	}
	if reloaded.Id != "rig-a" || reloaded.Camera.PixelSizeUM != 3.45 {
		t.Errorf("Export round trip mismatch: %+v", reloaded)
	}

	// Duplicate ids must name both files
	writeProfile("rig-a-copy.yml", validProfileYAML)
	_, err = LoadDir(dir)
	if err == nil {
		t.Fatalf("Expected duplicate id error")
	}
	if !strings.Contains(err.Error(), "rig-a.yml") || !strings.Contains(err.Error(), "rig-a-copy.yml") {
		t.Errorf("Duplicate error should name both files, got: %v", err)
	}
}
