package acquisition

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/slidescope/core/core/errorwithstatus"
	"github.com/slidescope/core/core/fileaccess"
	"github.com/slidescope/core/core/idgen"
	"github.com/slidescope/core/core/logger"
	"github.com/slidescope/core/core/microscope"
	"github.com/slidescope/core/core/scopeclient"
	"github.com/slidescope/core/core/tiling"
	"github.com/slidescope/core/core/timestamper"
	"github.com/slidescope/core/core/transform"
)

// Stitcher - trigger for the external stitch step once tiles are archived.
// Works off the archived S3 copy, not the rig scratch dir. Implemented by
// api/stitch, nil when no stitcher binary is configured
type Stitcher interface {
	Run(summary AcquisitionSummary, plan tiling.TilePlan) (string, error)
}

type Deps struct {
	Store    Store
	Profiles *microscope.Store
	Scopes   *scopeclient.Registry
	FS       fileaccess.FileAccess
	Notifier Notifier
	IDGen    idgen.IDGenerator
	TS       timestamper.ITimeStamper
	Log      logger.ILogger

	// Where archives go
	Bucket string

	// The directory the scope server writes tiles into, one subdir per run.
	// Daemon and scope server share the rig filesystem so this is local
	TileDirRoot string

	MaxTilesPerPlan int
	StallTimeoutSec int64
	PollFailLimit   int

	Stitcher Stitcher
}

// Tracks one in-flight run. The poll goroutine owns the record once started,
// Cancel only flips the flag here and pokes the scope server
type run struct {
	mu              sync.Mutex
	cancelRequested bool
}

func (r *run) requestCancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelRequested = true
}

func (r *run) cancelWanted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelRequested
}

// Manager - owns acquisition orchestration. One active run per microscope
// profile, everything else queued behind a conflict error
type Manager struct {
	deps Deps

	mu sync.Mutex
	// microscope id -> acquisition id of the active run
	active map[string]string
	runs   map[string]*run
}

func MakeManager(deps Deps) *Manager {
	return &Manager{
		deps:   deps,
		active: map[string]string{},
		runs:   map[string]*run{},
	}
}

// Start - validates everything that can fail fast (profile, plan, stage
// bounds, scope link, no other active run), persists a starting record,
// launches the runner goroutine and returns immediately
func (m *Manager) Start(req tiling.TilingRequest, requester string) (AcquisitionSummary, error) {
	summary := AcquisitionSummary{}

	profile, ok := m.deps.Profiles.Get(req.MicroscopeId)
	if !ok {
		return summary, errorwithstatus.MakeNotFoundError(req.MicroscopeId)
	}

	objective := req.Objective
	if len(objective) <= 0 {
		objective = profile.DefaultObjective
		req.Objective = objective
	}

	fovX, fovY, err := profile.FOVUM(objective)
	if err != nil {
		return summary, errorwithstatus.MakeBadRequestError(err)
	}

	plan, err := tiling.PlanGrid(req, fovX, fovY, m.deps.MaxTilesPerPlan)
	if err != nil {
		return summary, errorwithstatus.MakeBadRequestError(err)
	}

	// The whole imaged area has to stay inside stage travel, not just the
	// requested region - overhang from grid centring counts too
	if err := transform.ValidateStageBounds(transform.MakeIdentity(), plan.CoverageUM(), profile.StageBounds()); err != nil {
		return summary, errorwithstatus.MakeBadRequestError(err)
	}

	// Connection failures abort the workflow before any motion happens
	scope, err := m.deps.Scopes.Get(req.MicroscopeId)
	if err != nil {
		return summary, errorwithstatus.MakeStatusError(http.StatusServiceUnavailable, err)
	}

	m.mu.Lock()
	if activeId, busy := m.active[req.MicroscopeId]; busy {
		m.mu.Unlock()
		return summary, errorwithstatus.MakeConflictError(
			fmt.Errorf("microscope %v is already running acquisition %v", req.MicroscopeId, activeId))
	}

	id := "acq-" + m.deps.IDGen.GenObjectID()
	summary = AcquisitionSummary{
		Id:           id,
		SlideId:      req.SlideId,
		MicroscopeId: req.MicroscopeId,
		State:        StateStarting,
		TilesDone:    0,
		TilesTotal:   len(plan.Tiles),
		Cols:         plan.Cols,
		Rows:         plan.Rows,
		Objective:    objective,
		Requester:    requester,
		Request:      req,
		StartUnixSec: m.deps.TS.GetTimeNowSec(),
		Logs:         []string{},
	}

	// Persist before broadcast, and before anyone else can see the run as active
	if err := m.deps.Store.Insert(summary); err != nil {
		m.mu.Unlock()
		return AcquisitionSummary{}, err
	}

	theRun := &run{}
	m.active[req.MicroscopeId] = id
	m.runs[id] = theRun
	m.mu.Unlock()

	acqStartedCount.Inc()
	acqActiveGauge.Inc()
	m.deps.Notifier.Broadcast(WSUpdateType, summary)
	m.deps.Log.Infof("Acquisition %v started: %vx%v tiles on %v for slide %v", id, plan.Cols, plan.Rows, req.MicroscopeId, req.SlideId)

	go m.runAcquisition(summary, plan, profile, scope, theRun)

	return summary, nil
}

// Cancel - asks the scope server to stop and flags the run. The poll loop
// observes the flag (and eventually the server's CANCELLED) and finalises -
// it stays the only writer of the run's record. Already-acquired tiles are
// kept as partial results
func (m *Manager) Cancel(id string) error {
	summary, found, err := m.deps.Store.Get(id)
	if err != nil {
		return err
	}
	if !found {
		return errorwithstatus.MakeNotFoundError(id)
	}
	if summary.State.IsTerminal() {
		return errorwithstatus.MakeConflictError(fmt.Errorf("acquisition %v already finished as %v", id, summary.State))
	}

	m.mu.Lock()
	theRun, running := m.runs[id]
	m.mu.Unlock()

	if !running {
		// Record says non-terminal but we're not running it - orphan from a
		// past daemon. Nothing to cancel on the wire
		return errorwithstatus.MakeConflictError(fmt.Errorf("acquisition %v is not active on this daemon", id))
	}

	theRun.requestCancel()

	if scope, err := m.deps.Scopes.Get(summary.MicroscopeId); err == nil {
		if err := scope.Cancel(id); err != nil && !scopeclient.IsUnknownJob(err) {
			m.deps.Log.Errorf("Acquisition %v: CANCEL send failed: %v", id, err)
		}
	}

	m.deps.Log.Infof("Acquisition %v: cancel requested", id)
	return nil
}

func (m *Manager) Get(id string) (AcquisitionSummary, error) {
	summary, found, err := m.deps.Store.Get(id)
	if err != nil {
		return summary, err
	}
	if !found {
		return summary, errorwithstatus.MakeNotFoundError(id)
	}
	return summary, nil
}

func (m *Manager) List(filter ListFilter) ([]AcquisitionSummary, error) {
	return m.deps.Store.List(filter)
}

// ActiveForMicroscope - the id of the run currently driving a rig, if any
func (m *Manager) ActiveForMicroscope(scopeId string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.active[scopeId]
	return id, ok
}

// RecoverOrphaned - called once at daemon startup. Any record left
// non-terminal belonged to a previous daemon process - nobody is polling it
// any more, so mark it failed rather than leaving it stuck forever
func (m *Manager) RecoverOrphaned() error {
	orphans, err := m.deps.Store.NonTerminal()
	if err != nil {
		return err
	}

	now := m.deps.TS.GetTimeNowSec()
	for _, summary := range orphans {
		summary.State = StateError
		summary.Message = "orphaned by restart"
		summary.EndUnixSec = now
		summary.ElapsedSec = now - summary.StartUnixSec

		if err := m.deps.Store.Update(summary); err != nil {
			return err
		}
		m.deps.Log.Infof("Acquisition %v from a previous run marked as orphaned", summary.Id)
	}

	return nil
}

// release - the runner goroutine calls this once, whatever way the run ended
func (m *Manager) release(summary AcquisitionSummary) {
	m.mu.Lock()
	if m.active[summary.MicroscopeId] == summary.Id {
		delete(m.active, summary.MicroscopeId)
	}
	delete(m.runs, summary.Id)
	m.mu.Unlock()

	acqActiveGauge.Dec()
	acqFinishedCount.WithLabelValues(string(summary.State)).Inc()
}
