package session

import (
	"fmt"
	"path/filepath"
	"time"
)

// recordingPath builds the path a finished uplink capture is persisted to:
// <dir>/rec_ws_<UTC timestamp with microsecond precision>.wav.
func recordingPath(dir string, at time.Time) string {
	ts := at.UTC().Format("20060102_150405.000000")
	ts = ts[:len("20060102_150405")] + "_" + ts[len("20060102_150405")+1:]
	name := fmt.Sprintf("rec_ws_%s.wav", ts)
	return filepath.Join(dir, name)
}
