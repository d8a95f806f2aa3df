package stitch

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/slidescope/core/api/acquisition"
	"github.com/slidescope/core/core/fileaccess"
	"github.com/slidescope/core/core/logger"
	"github.com/slidescope/core/core/tiling"
)

// Runs the external stitcher over an acquisition's archived tiles. The tiles
// are pulled down from S3 into a work dir first - the scope server's local
// tile dir is transient, stitching only depends on what archive() uploaded,
// so a run can be re-stitched long after the rig scratch space is gone.
// The stitcher is whatever binary the rig has installed (typically a
// Fiji/Grid-stitching wrapper script) - we hand it the downloaded tile dir,
// the TileConfiguration.txt the tiling package wrote, and where to put its
// output, plus the whole job as JSON in an env var for smarter stitchers.

// We support the concept of a "no-op" command only for testing - tests can run
// on different platforms so we want to test the wiring without executing
// anything OS specific
var NoOpCommand = "noop"

var JobConfigEnvVar = "STITCH_JOB"

const StitchedFileName = "stitched.tif"
const StitchLogFileName = "stitch.log"

// What the stitcher binary receives in STITCH_JOB
type JobConfig struct {
	AcquisitionId string  `json:"acquisitionId"`
	TileDir       string  `json:"tileDir"`
	TileConfig    string  `json:"tileConfig"`
	OutputPath    string  `json:"outputPath"`
	Cols          int     `json:"cols"`
	Rows          int     `json:"rows"`
	OverlapPct    float64 `json:"overlapPercent"`
}

type Runner struct {
	// Path to the stitcher binary. The daemon doesn't construct a Runner at
	// all when this isn't configured
	StitcherPath string

	// Where the tiles were archived and the stitched result goes back to
	Bucket string

	// Local scratch space tiles get downloaded into, one subdir per
	// acquisition id
	WorkDir string

	FS  fileaccess.FileAccess
	Log logger.ILogger
}

func MakeRunner(stitcherPath string, bucket string, workDir string, fs fileaccess.FileAccess, log logger.ILogger) *Runner {
	if len(workDir) <= 0 {
		workDir = filepath.Join(os.TempDir(), "stitch")
	}

	return &Runner{
		StitcherPath: stitcherPath,
		Bucket:       bucket,
		WorkDir:      workDir,
		FS:           fs,
		Log:          log,
	}
}

// Run - stitches one finished acquisition from its archived tiles. Returns
// the S3 path of the stitched image. The tile upload has already happened by
// the time this runs, so a stitch failure never loses data
func (r *Runner) Run(summary acquisition.AcquisitionSummary, plan tiling.TilePlan) (string, error) {
	if len(r.StitcherPath) <= 0 {
		return "", fmt.Errorf("no stitcher binary configured")
	}
	if len(summary.OutputPrefix) <= 0 {
		return "", fmt.Errorf("acquisition %v has no archive to stitch", summary.Id)
	}

	runDir, err := r.downloadJobFiles(summary)
	if err != nil {
		return "", err
	}

	outputPath := filepath.Join(runDir, StitchedFileName)

	cfg := JobConfig{
		AcquisitionId: summary.Id,
		TileDir:       runDir,
		TileConfig:    filepath.Join(runDir, tiling.TileConfigurationFileName),
		OutputPath:    outputPath,
		Cols:          plan.Cols,
		Rows:          plan.Rows,
		OverlapPct:    summary.Request.OverlapPercent,
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode stitch job: %v", err)
	}

	r.Log.Infof("Stitching %v: %v %v", summary.Id, r.StitcherPath, runDir)
	startUnixSec := time.Now().Unix()

	var cmdStdOut []byte
	if r.StitcherPath != NoOpCommand {
		cmd := exec.Command(r.StitcherPath, cfg.TileDir, cfg.TileConfig, cfg.OutputPath)
		cmd.Env = append(os.Environ(), JobConfigEnvVar+"="+string(cfgJSON))

		cmdStdOut, err = cmd.CombinedOutput()

		// Whatever the stitcher printed is worth keeping either way
		r.uploadLog(summary, cmdStdOut)

		if err != nil {
			return "", fmt.Errorf("stitcher failed for %v: %v", summary.Id, err)
		}
	}

	r.Log.Infof("Stitch %v runtime was %v sec", summary.Id, time.Now().Unix()-startUnixSec)

	// Upload the result, error if the stitcher didn't produce one
	data, err := os.ReadFile(outputPath)
	if err != nil {
		return "", fmt.Errorf("stitcher did not generate expected output file: %v", outputPath)
	}

	remotePath := path.Join(summary.OutputPrefix, StitchedFileName)
	if err := r.FS.WriteObject(r.Bucket, remotePath, data); err != nil {
		return "", fmt.Errorf("failed to upload stitched result for %v: %v", summary.Id, err)
	}

	r.Log.Infof("Uploaded stitched result to: s3://%v/%v", r.Bucket, remotePath)
	return remotePath, nil
}

// downloadJobFiles - pulls the archived tiles and TileConfiguration.txt down
// into WorkDir/<acquisition id>. Run dirs are left in place afterwards, rig
// maintenance clears the work dir on its own schedule
func (r *Runner) downloadJobFiles(summary acquisition.AcquisitionSummary) (string, error) {
	runDir := filepath.Join(r.WorkDir, summary.Id)
	if err := os.MkdirAll(runDir, 0777); err != nil {
		return "", fmt.Errorf("failed to create stitch work dir %v: %v", runDir, err)
	}

	tilePrefix := path.Join(summary.OutputPrefix, "tiles") + "/"
	keys, err := r.FS.ListObjects(r.Bucket, tilePrefix)
	if err != nil {
		return "", fmt.Errorf("failed to list archived tiles for %v: %v", summary.Id, err)
	}
	if len(keys) <= 0 {
		return "", fmt.Errorf("no archived tiles found for %v at s3://%v/%v", summary.Id, r.Bucket, tilePrefix)
	}

	for _, key := range keys {
		data, err := r.FS.ReadObject(r.Bucket, key)
		if err != nil {
			return "", fmt.Errorf("failed to download tile %v: %v", key, err)
		}
		if err := os.WriteFile(filepath.Join(runDir, path.Base(key)), data, 0666); err != nil {
			return "", fmt.Errorf("failed to write tile %v to work dir: %v", path.Base(key), err)
		}
	}

	cfgKey := path.Join(summary.OutputPrefix, tiling.TileConfigurationFileName)
	cfgData, err := r.FS.ReadObject(r.Bucket, cfgKey)
	if err != nil {
		return "", fmt.Errorf("failed to download %v for %v: %v", tiling.TileConfigurationFileName, summary.Id, err)
	}
	if err := os.WriteFile(filepath.Join(runDir, tiling.TileConfigurationFileName), cfgData, 0666); err != nil {
		return "", fmt.Errorf("failed to write %v to work dir: %v", tiling.TileConfigurationFileName, err)
	}

	r.Log.Infof("Downloaded %v tiles for %v into %v", len(keys), summary.Id, runDir)
	return runDir, nil
}

func (r *Runner) uploadLog(summary acquisition.AcquisitionSummary, stdout []byte) {
	if len(strings.TrimSpace(string(stdout))) <= 0 {
		return
	}

	remotePath := path.Join(summary.OutputPrefix, StitchLogFileName)
	if err := r.FS.WriteObject(r.Bucket, remotePath, stdout); err != nil {
		r.Log.Errorf("Failed to upload stitch log to s3://%v/%v: %v", r.Bucket, remotePath, err)
	}
}
