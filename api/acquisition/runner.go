package acquisition

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/slidescope/core/core/microscope"
	"github.com/slidescope/core/core/scopeclient"
	"github.com/slidescope/core/core/tiling"
)

const defaultPollIntervalMS = 1000

// runAcquisition - the background goroutine driving one run end to end:
// position the rig, BGACQUIRE, poll PROGRESS at the profile's interval until
// a terminal server state (or the watchdog gives up), then archive whatever
// tiles exist. After Start returns this goroutine is the only writer to the
// run's record
func (m *Manager) runAcquisition(summary AcquisitionSummary, plan tiling.TilePlan, profile microscope.MicroscopeConfig, scope *scopeclient.Client, theRun *run) {
	defer func() { m.release(summary) }()

	tileDir := filepath.Join(m.deps.TileDirRoot, summary.Id)
	if err := os.MkdirAll(tileDir, 0777); err != nil {
		m.finalise(&summary, StateError, fmt.Sprintf("failed to create tile directory: %v", err))
		return
	}

	// Put the rig in the right configuration before any tiles get taken
	if err := scope.SetObjective(summary.Objective); err != nil {
		m.finalise(&summary, StateError, err.Error())
		return
	}
	if summary.Request.FocusZUM != nil {
		if err := scope.MoveZ(*summary.Request.FocusZUM); err != nil {
			m.finalise(&summary, StateError, err.Error())
			return
		}
	}

	// Move to the first tile so the server's walk starts from a settled stage
	first := plan.Tiles[0].CenterUM
	if err := scope.MoveTo(first.X, first.Y); err != nil {
		m.finalise(&summary, StateError, err.Error())
		return
	}

	if _, err := scope.StartAcquire(scopeclient.AcquireRequest{
		JobId:    summary.Id,
		TileDir:  tileDir,
		Cols:     plan.Cols,
		Rows:     plan.Rows,
		StartXUM: plan.OriginUM.X,
		StartYUM: plan.OriginUM.Y,
		StepXUM:  plan.StepXUM,
		StepYUM:  plan.StepYUM,
	}); err != nil {
		m.finalise(&summary, StateError, err.Error())
		return
	}

	summary.State = StateRunning
	m.persistAndNotify(&summary)

	pollMS := profile.ScopeServer.PollIntervalMS
	if pollMS <= 0 {
		pollMS = defaultPollIntervalMS
	}

	consecFails := 0
	lastChangeSec := m.deps.TS.GetTimeNowSec()

	for {
		time.Sleep(time.Duration(pollMS) * time.Millisecond)

		if theRun.cancelWanted() && summary.State != StateCancelling {
			summary.State = StateCancelling
			m.persistAndNotify(&summary)
		}

		progress, err := scope.Progress(summary.Id)
		if err != nil {
			consecFails++
			m.deps.Log.Errorf("Acquisition %v: progress poll failed (%v of %v): %v", summary.Id, consecFails, m.deps.PollFailLimit, err)

			if consecFails >= m.deps.PollFailLimit {
				m.tryCancelOnServer(scope, summary.Id)
				m.archive(&summary, plan, profile, tileDir)
				m.finalise(&summary, StateError, fmt.Sprintf("lost contact with scope server after %v polls: %v", consecFails, err))
				return
			}

			// The registry redials poisoned connections, so grab a fresh
			// client for the next tick if ours died
			if !scope.Healthy() {
				if fresh, dialErr := m.deps.Scopes.Get(summary.MicroscopeId); dialErr == nil {
					scope = fresh
				}
			}
			continue
		}
		consecFails = 0

		if progress.TilesDone != summary.TilesDone {
			summary.TilesDone = progress.TilesDone
			lastChangeSec = m.deps.TS.GetTimeNowSec()
			acqTilesDoneGauge.WithLabelValues(summary.MicroscopeId).Set(float64(summary.TilesDone))
			m.persistAndNotify(&summary)
		}

		switch progress.State {
		case scopeclient.JobStateRunning:
			// Watchdog: a stage that stops making progress without erroring is
			// a wedged rig, fail the run rather than polling forever
			if m.deps.StallTimeoutSec > 0 && m.deps.TS.GetTimeNowSec()-lastChangeSec > m.deps.StallTimeoutSec {
				m.tryCancelOnServer(scope, summary.Id)
				m.archive(&summary, plan, profile, tileDir)
				m.finalise(&summary, StateError, fmt.Sprintf("no progress for %v sec at tile %v of %v, rig stalled",
					m.deps.StallTimeoutSec, summary.TilesDone, summary.TilesTotal))
				return
			}

		case scopeclient.JobStateDone:
			if err := m.archive(&summary, plan, profile, tileDir); err != nil {
				m.finalise(&summary, StateError, fmt.Sprintf("acquired ok but archive failed: %v", err))
				return
			}
			m.runStitch(&summary, plan)
			m.finalise(&summary, StateDone, "")
			return

		case scopeclient.JobStateError:
			// Partial cleanup means archive what exists and say so, never
			// silently delete tiles
			m.archive(&summary, plan, profile, tileDir)
			m.finalise(&summary, StateError, progress.Message)
			return

		case scopeclient.JobStateCancelled:
			m.archive(&summary, plan, profile, tileDir)
			m.finalise(&summary, StateCancelled, fmt.Sprintf("cancelled with %v of %v tiles kept", summary.TilesDone, summary.TilesTotal))
			return
		}
	}
}

func (m *Manager) tryCancelOnServer(scope *scopeclient.Client, id string) {
	if err := scope.Cancel(id); err != nil && !scopeclient.IsUnknownJob(err) {
		m.deps.Log.Errorf("Acquisition %v: best-effort CANCEL failed: %v", id, err)
	}
}

// archive - uploads whatever tiles the run produced, plus the stitcher's
// TileConfiguration.txt and the run summary, to S3 under the acquisition
// prefix. Called for done, error AND cancelled runs - partial results are
// results. Individual tile upload failures are logged on the record and
// don't abort the rest
func (m *Manager) archive(summary *AcquisitionSummary, plan tiling.TilePlan, profile microscope.MicroscopeConfig, tileDir string) error {
	summary.State = StateUploading
	summary.OutputPrefix = OutputPrefixForId(summary.Id)
	m.persistAndNotify(summary)

	entries, err := os.ReadDir(tileDir)
	if err != nil {
		return fmt.Errorf("failed to read tile directory %v: %v", tileDir, err)
	}

	uploaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		data, err := os.ReadFile(filepath.Join(tileDir, entry.Name()))
		if err != nil {
			summary.Logs = append(summary.Logs, fmt.Sprintf("failed to read tile %v: %v", entry.Name(), err))
			continue
		}

		dst := path.Join(summary.OutputPrefix, "tiles", entry.Name())
		if err := m.deps.FS.WriteObject(m.deps.Bucket, dst, data); err != nil {
			summary.Logs = append(summary.Logs, fmt.Sprintf("failed to upload tile %v: %v", entry.Name(), err))
			continue
		}
		uploaded++
	}

	objective, err := profile.Objective(summary.Objective)
	if err == nil {
		var tileConfig bytes.Buffer
		if err := tiling.WriteTileConfiguration(&tileConfig, plan, objective.PixelSizeUM); err == nil {
			// Written next to the tiles as well, the stitcher reads it there
			localPath := filepath.Join(tileDir, tiling.TileConfigurationFileName)
			if err := os.WriteFile(localPath, tileConfig.Bytes(), 0666); err != nil {
				summary.Logs = append(summary.Logs, fmt.Sprintf("failed to write %v: %v", localPath, err))
			}

			dst := path.Join(summary.OutputPrefix, tiling.TileConfigurationFileName)
			if err := m.deps.FS.WriteObject(m.deps.Bucket, dst, tileConfig.Bytes()); err != nil {
				summary.Logs = append(summary.Logs, fmt.Sprintf("failed to upload %v: %v", tiling.TileConfigurationFileName, err))
			}
		}
	}

	summary.Logs = append(summary.Logs, fmt.Sprintf("archived %v of %v tile files", uploaded, summary.TilesDone))

	// Written without indent so Athena can query run summaries
	if err := m.deps.FS.WriteJSONNoIndent(m.deps.Bucket, path.Join(summary.OutputPrefix, "summary.json"), summary); err != nil {
		summary.Logs = append(summary.Logs, fmt.Sprintf("failed to upload summary.json: %v", err))
	}

	return nil
}

func (m *Manager) runStitch(summary *AcquisitionSummary, plan tiling.TilePlan) {
	if m.deps.Stitcher == nil {
		return
	}

	output, err := m.deps.Stitcher.Run(*summary, plan)
	if err != nil {
		// Stitching is best-effort, the tiles are already archived
		summary.Logs = append(summary.Logs, fmt.Sprintf("stitch failed: %v", err))
		m.deps.Log.Errorf("Acquisition %v: stitch failed: %v", summary.Id, err)
		return
	}

	summary.Logs = append(summary.Logs, fmt.Sprintf("stitched result: %v", output))
}

// finalise - the one place terminal (and startup-failure) states get written.
// Persist first, broadcast after
func (m *Manager) finalise(summary *AcquisitionSummary, state State, message string) {
	now := m.deps.TS.GetTimeNowSec()

	summary.State = state
	summary.Message = message
	summary.EndUnixSec = now
	summary.ElapsedSec = now - summary.StartUnixSec

	m.persistAndNotify(summary)
	acqTilesDoneGauge.WithLabelValues(summary.MicroscopeId).Set(0)
	m.deps.Log.Infof("Acquisition %v finished: %v %v", summary.Id, state, message)
}

// Every state transition is persisted before it is broadcast
func (m *Manager) persistAndNotify(summary *AcquisitionSummary) {
	if err := m.deps.Store.Update(*summary); err != nil {
		m.deps.Log.Errorf("Acquisition %v: failed to persist state %v: %v", summary.Id, summary.State, err)
	}
	m.deps.Notifier.Broadcast(WSUpdateType, *summary)
}
