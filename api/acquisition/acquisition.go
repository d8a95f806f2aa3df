package acquisition

import (
	"path"

	"github.com/slidescope/core/core/tiling"
)

// OutputPrefixForId - where a run's files land in the acquisition bucket.
// Deterministic so download routes don't need the run record to build keys
func OutputPrefixForId(id string) string {
	return path.Join("acquisitions", id)
}

// State of an acquisition run. Persisted as strings so the Mongo records and
// the JSON the API serves read the same
type State string

const (
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateUploading  State = "uploading"
	StateDone       State = "done"
	StateError      State = "error"
	StateCancelling State = "cancelling"
	StateCancelled  State = "cancelled"
)

// IsTerminal - terminal states are sticky, nothing updates a run once it
// reaches one
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateError || s == StateCancelled
}

// AcquisitionSummary - everything we track about one acquisition run. This is
// the record persisted to Mongo, the payload pushed to websocket subscribers
// and the JSON the acquisition endpoints serve, all in one
type AcquisitionSummary struct {
	Id           string               `json:"id" bson:"_id"`
	SlideId      string               `json:"slideId" bson:"slideId"`
	MicroscopeId string               `json:"microscopeId" bson:"microscopeId"`
	State        State                `json:"state" bson:"state"`
	Message      string               `json:"message,omitempty" bson:"message,omitempty"`
	TilesDone    int                  `json:"tilesDone" bson:"tilesDone"`
	TilesTotal   int                  `json:"tilesTotal" bson:"tilesTotal"`
	Cols         int                  `json:"cols" bson:"cols"`
	Rows         int                  `json:"rows" bson:"rows"`
	Objective    string               `json:"objective" bson:"objective"`
	Requester    string               `json:"requester" bson:"requester"`
	Request      tiling.TilingRequest `json:"request" bson:"request"`
	StartUnixSec int64                `json:"startUnixSec" bson:"startUnixSec"`
	EndUnixSec   int64                `json:"endUnixSec,omitempty" bson:"endUnixSec,omitempty"`
	ElapsedSec   int64                `json:"elapsedSec,omitempty" bson:"elapsedSec,omitempty"`

	// Where the archived tiles + TileConfiguration.txt + summary ended up in S3.
	// Empty until the upload step has run
	OutputPrefix string `json:"outputPrefix,omitempty" bson:"outputPrefix,omitempty"`

	// Things that happened during the run worth surfacing, eg partial archive
	// failures. Not a substitute for the daemon log
	Logs []string `json:"logs,omitempty" bson:"logs,omitempty"`
}

// The message type pushed over the websocket for every state/progress change
const WSUpdateType = "acquisition-update"

// Notifier - whoever wants to hear about state changes. The websocket hub in
// production, a recorder in tests
type Notifier interface {
	Broadcast(msgType string, payload interface{})
}
