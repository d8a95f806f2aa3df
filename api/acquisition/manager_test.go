package acquisition

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/slidescope/core/core/errorwithstatus"
	"github.com/slidescope/core/core/fileaccess"
	"github.com/slidescope/core/core/logger"
	"github.com/slidescope/core/core/microscope"
	"github.com/slidescope/core/core/scopeclient"
	"github.com/slidescope/core/core/scopesim"
	"github.com/slidescope/core/core/tiling"
	"github.com/slidescope/core/core/timestamper"
	"github.com/slidescope/core/core/transform"
)

const testBucket = "acq-bucket"

type mockIDGen struct {
	count int
}

func (m *mockIDGen) GenObjectID() string {
	m.count++
	return fmt.Sprintf("id%v", m.count)
}

// Records broadcasts so tests can check persist-then-notify ordering
type recordingNotifier struct {
	mu       sync.Mutex
	payloads []AcquisitionSummary
}

func (n *recordingNotifier) Broadcast(msgType string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if summary, ok := payload.(AcquisitionSummary); ok {
		n.payloads = append(n.payloads, summary)
	}
}

func (n *recordingNotifier) states() []State {
	n.mu.Lock()
	defer n.mu.Unlock()
	result := []State{}
	for _, p := range n.payloads {
		if len(result) == 0 || result[len(result)-1] != p.State {
			result = append(result, p.State)
		}
	}
	return result
}

func testProfile(simPort int) microscope.MicroscopeConfig {
	return microscope.MicroscopeConfig{
		Id:          "rig1",
		DisplayName: "Test rig",
		ScopeServer: microscope.ScopeServerConfig{
			Host:              "127.0.0.1",
			Port:              simPort,
			DialTimeoutSec:    1,
			RequestTimeoutSec: 2,
			PollIntervalMS:    5,
		},
		Stage: microscope.StageConfig{
			MinXUM: 0, MaxXUM: 10000,
			MinYUM: 0, MaxYUM: 10000,
		},
		Camera: microscope.CameraConfig{
			PixelSizeUM:   5,
			ImageWidthPX:  100,
			ImageHeightPX: 100,
		},
		Objectives: []microscope.ObjectiveConfig{
			{Name: "10x", Magnification: 10, PixelSizeUM: 1},
		},
		DefaultObjective: "10x",
		Tiling:           microscope.TilingDefaults{OverlapPercent: 10},
	}
}

type testRig struct {
	sim      *scopesim.Simulator
	manager  *Manager
	store    *MemoryStore
	fs       *fileaccess.MemoryFileAccess
	notifier *recordingNotifier
}

func makeTestRig(t *testing.T) *testRig {
	t.Helper()

	sim, err := scopesim.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start simulator: %v", err)
	}
	t.Cleanup(sim.Close)
	sim.WriteTiles = true

	profile := testProfile(sim.Port())
	profiles := microscope.MakeStore(profile)

	scopes := scopeclient.MakeRegistry(func(scopeId string) (scopeclient.Config, error) {
		cfg, ok := profiles.Get(scopeId)
		if !ok {
			return scopeclient.Config{}, fmt.Errorf("no profile %v", scopeId)
		}
		return scopeclient.Config{
			Host:           cfg.ScopeServer.Host,
			Port:           cfg.ScopeServer.Port,
			DialTimeout:    time.Second,
			RequestTimeout: 2 * time.Second,
		}, nil
	})
	t.Cleanup(scopes.CloseAll)

	rig := &testRig{
		sim:      sim,
		store:    MakeMemoryStore(),
		fs:       fileaccess.MakeMemoryFileAccess(),
		notifier: &recordingNotifier{},
	}

	rig.manager = MakeManager(Deps{
		Store:           rig.store,
		Profiles:        profiles,
		Scopes:          scopes,
		FS:              rig.fs,
		Notifier:        rig.notifier,
		IDGen:           &mockIDGen{},
		TS:              &timestamper.UnixTimeNowStamper{},
		Log:             &logger.NullLogger{},
		Bucket:          testBucket,
		TileDirRoot:     t.TempDir(),
		MaxTilesPerPlan: 100,
		StallTimeoutSec: 60,
		PollFailLimit:   3,
	})

	return rig
}

func smallRequest() tiling.TilingRequest {
	// 2x2 grid: FOV 100x100um, overlap 10% -> step 90um, region 150um wide
	return tiling.TilingRequest{
		MicroscopeId:   "rig1",
		SlideId:        "slide-7",
		RegionUM:       transform.Rect{MinX: 4000, MinY: 4000, MaxX: 4150, MaxY: 4150},
		Objective:      "10x",
		OverlapPercent: 10,
	}
}

func waitForTerminal(t *testing.T, rig *testRig, id string) AcquisitionSummary {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		summary, found, err := rig.store.Get(id)
		if err != nil {
			t.Fatalf("Store get failed: %v", err)
		}
		if found && summary.State.IsTerminal() {
			return summary
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("Acquisition %v never reached a terminal state", id)
	return AcquisitionSummary{}
}

func TestAcquisitionHappyPath(t *testing.T) {
	rig := makeTestRig(t)

	started, err := rig.manager.Start(smallRequest(), "tester")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if started.State != StateStarting {
		t.Errorf("Start returned state %v, want starting", started.State)
	}
	if started.Cols != 2 || started.Rows != 2 || started.TilesTotal != 4 {
		t.Errorf("Start returned plan %vx%v (%v tiles), want 2x2 (4)", started.Cols, started.Rows, started.TilesTotal)
	}
	if activeId, ok := rig.manager.ActiveForMicroscope("rig1"); !ok || activeId != started.Id {
		t.Errorf("ActiveForMicroscope got %v/%v, want %v", activeId, ok, started.Id)
	}

	final := waitForTerminal(t, rig, started.Id)
	if final.State != StateDone {
		t.Fatalf("Run finished as %v (%v), want done", final.State, final.Message)
	}
	if final.TilesDone != 4 {
		t.Errorf("TilesDone got %v, want 4", final.TilesDone)
	}
	if final.OutputPrefix != "acquisitions/"+started.Id {
		t.Errorf("OutputPrefix got %v", final.OutputPrefix)
	}
	if final.EndUnixSec < final.StartUnixSec {
		t.Errorf("End %v before start %v", final.EndUnixSec, final.StartUnixSec)
	}

	// Everything the run produced should be archived
	objects, err := rig.fs.ListObjects(testBucket, final.OutputPrefix)
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	wantObjects := []string{
		final.OutputPrefix + "/" + tiling.TileConfigurationFileName,
		final.OutputPrefix + "/summary.json",
		final.OutputPrefix + "/tiles/tile_0_0.tif",
		final.OutputPrefix + "/tiles/tile_0_1.tif",
		final.OutputPrefix + "/tiles/tile_1_0.tif",
		final.OutputPrefix + "/tiles/tile_1_1.tif",
	}
	for _, want := range wantObjects {
		found := false
		for _, obj := range objects {
			if obj == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Archive is missing %v, got %v", want, objects)
		}
	}

	// State transitions arrive in order, terminal last
	states := rig.notifier.states()
	if len(states) < 3 || states[0] != StateStarting || states[len(states)-1] != StateDone {
		t.Errorf("Broadcast state sequence unexpected: %v", states)
	}

	// The microscope is free again once the run finishes
	deadline := time.Now().Add(time.Second)
	for {
		if _, busy := rig.manager.ActiveForMicroscope("rig1"); !busy {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Microscope still marked active after run finished")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAcquisitionOnePerMicroscope(t *testing.T) {
	rig := makeTestRig(t)
	rig.sim.TileDelay = 50 * time.Millisecond

	started, err := rig.manager.Start(smallRequest(), "tester")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	_, err = rig.manager.Start(smallRequest(), "tester")
	if err == nil {
		t.Fatal("Second Start should have been rejected")
	}
	if statusErr, ok := err.(errorwithstatus.Error); !ok || statusErr.Status() != 409 {
		t.Errorf("Second Start error got %v, want HTTP 409", err)
	}

	if err := rig.manager.Cancel(started.Id); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	waitForTerminal(t, rig, started.Id)
}

func TestAcquisitionCancel(t *testing.T) {
	rig := makeTestRig(t)
	rig.sim.TileDelay = 30 * time.Millisecond

	started, err := rig.manager.Start(smallRequest(), "tester")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Let it make some progress first
	time.Sleep(50 * time.Millisecond)

	if err := rig.manager.Cancel(started.Id); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	final := waitForTerminal(t, rig, started.Id)
	if final.State != StateCancelled {
		t.Fatalf("Run finished as %v (%v), want cancelled", final.State, final.Message)
	}
	if !strings.Contains(final.Message, "tiles kept") {
		t.Errorf("Cancelled message should mention kept tiles, got %q", final.Message)
	}

	// Partial results still get archived
	if len(final.OutputPrefix) == 0 {
		t.Error("Cancelled run has no output prefix, partial tiles were not archived")
	}

	// Cancelling a finished run is a conflict
	err = rig.manager.Cancel(started.Id)
	if statusErr, ok := err.(errorwithstatus.Error); !ok || statusErr.Status() != 409 {
		t.Errorf("Cancel on terminal run got %v, want HTTP 409", err)
	}
}

func TestAcquisitionScopeError(t *testing.T) {
	rig := makeTestRig(t)
	rig.sim.FailNext("BGACQUIRE", "stage fault E12")

	started, err := rig.manager.Start(smallRequest(), "tester")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	final := waitForTerminal(t, rig, started.Id)
	if final.State != StateError {
		t.Fatalf("Run finished as %v, want error", final.State)
	}
	if !strings.Contains(final.Message, "stage fault E12") {
		t.Errorf("Error message should carry the server's words, got %q", final.Message)
	}
}

func TestStartValidation(t *testing.T) {
	rig := makeTestRig(t)

	// Unknown microscope
	req := smallRequest()
	req.MicroscopeId = "no-such-rig"
	_, err := rig.manager.Start(req, "tester")
	if statusErr, ok := err.(errorwithstatus.Error); !ok || statusErr.Status() != 404 {
		t.Errorf("Unknown microscope got %v, want HTTP 404", err)
	}

	// Overlap out of range
	req = smallRequest()
	req.OverlapPercent = 95
	_, err = rig.manager.Start(req, "tester")
	if statusErr, ok := err.(errorwithstatus.Error); !ok || statusErr.Status() != 400 {
		t.Errorf("Bad overlap got %v, want HTTP 400", err)
	}

	// Region outside stage travel
	req = smallRequest()
	req.RegionUM = transform.Rect{MinX: 9900, MinY: 9900, MaxX: 10100, MaxY: 10100}
	_, err = rig.manager.Start(req, "tester")
	if statusErr, ok := err.(errorwithstatus.Error); !ok || statusErr.Status() != 400 {
		t.Errorf("Out of bounds region got %v, want HTTP 400", err)
	}

	// Plan over the tile limit
	req = smallRequest()
	req.RegionUM = transform.Rect{MinX: 100, MinY: 100, MaxX: 9900, MaxY: 9900}
	_, err = rig.manager.Start(req, "tester")
	if err == nil || !strings.Contains(err.Error(), "exceeds the limit") {
		t.Errorf("Oversized plan got %v, want tile limit error", err)
	}

	// Nothing should have been persisted for any of these
	records, listErr := rig.store.List(ListFilter{})
	if listErr != nil || len(records) != 0 {
		t.Errorf("Failed starts left records behind: %v %v", records, listErr)
	}
}

func TestRecoverOrphaned(t *testing.T) {
	rig := makeTestRig(t)

	orphan := AcquisitionSummary{
		Id:           "acq-orphan",
		MicroscopeId: "rig1",
		State:        StateRunning,
		StartUnixSec: 1234567,
	}
	if err := rig.store.Insert(orphan); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := rig.manager.RecoverOrphaned(); err != nil {
		t.Fatalf("RecoverOrphaned failed: %v", err)
	}

	recovered, found, err := rig.store.Get("acq-orphan")
	if err != nil || !found {
		t.Fatalf("Orphan record missing after recovery: %v", err)
	}
	if recovered.State != StateError || recovered.Message != "orphaned by restart" {
		t.Errorf("Orphan recovered as %v (%q)", recovered.State, recovered.Message)
	}
}
