package ffmpeg

import (
	"strconv"
	"strings"
	"time"
)

// Progress is one snapshot of a running encode, assembled from the key=value
// block ffmpeg emits on -progress pipe:2.
type Progress struct {
	Frame   int64         `json:"frame"`
	FPS     float64       `json:"fps"`
	Bitrate string        `json:"bitrate,omitempty"`
	OutTime time.Duration `json:"out_time_us"`
	Speed   float64       `json:"speed"`
	// Percent is derived from the probed input duration; -1 when the
	// duration is unknown and no percentage can be computed.
	Percent float64 `json:"percent"`
	Done    bool    `json:"done"`
}

// progressParser accumulates key=value lines into Progress snapshots. A
// snapshot is complete when the "progress=" terminator line arrives.
type progressParser struct {
	duration time.Duration // input duration, 0 = unknown
	pending  Progress
}

// parseLine consumes one stderr line. It returns a completed snapshot and
// true when the line terminated a progress block; otherwise false, with
// handled reporting whether the line belonged to the progress stream at all
// (so callers can keep non-progress stderr for error reporting).
func (p *progressParser) parseLine(line string) (Progress, bool, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return Progress{}, false, false
	}

	value = strings.TrimSpace(value)
	switch key {
	case "frame":
		p.pending.Frame, _ = strconv.ParseInt(value, 10, 64)
	case "fps":
		p.pending.FPS, _ = strconv.ParseFloat(value, 64)
	case "bitrate":
		if value != "N/A" {
			p.pending.Bitrate = value
		}
	case "out_time_us", "out_time_ms":
		// out_time_ms is microseconds despite the name (ffmpeg quirk)
		us, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			p.pending.OutTime = time.Duration(us) * time.Microsecond
		}
	case "out_time":
		// fallback for builds without the _us keys: HH:MM:SS.micros
		if d, ok := parseOutTime(value); ok {
			p.pending.OutTime = d
		}
	case "speed":
		p.pending.Speed, _ = strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64)
	case "progress":
		snapshot := p.pending
		snapshot.Done = value == "end"
		snapshot.Percent = p.percent(snapshot)
		p.pending = Progress{}
		return snapshot, true, true
	default:
		// stray key=value lines that are not part of the progress stream
		// (e.g. ffmpeg error text containing '=')
		if !knownProgressKey(key) {
			return Progress{}, false, false
		}
	}
	return Progress{}, false, true
}

func (p *progressParser) percent(snapshot Progress) float64 {
	if snapshot.Done {
		return 100
	}
	if p.duration <= 0 {
		return -1
	}
	pct := float64(snapshot.OutTime) / float64(p.duration) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// knownProgressKey covers the -progress keys this service doesn't surface but
// must still swallow so they don't pollute the stderr tail.
func knownProgressKey(key string) bool {
	switch key {
	case "stream_0_0_q", "total_size", "dup_frames", "drop_frames":
		return true
	}
	return false
}

// parseOutTime parses ffmpeg's HH:MM:SS.micros timestamps.
func parseOutTime(s string) (time.Duration, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err1 := strconv.Atoi(parts[0])
	minutes, err2 := strconv.Atoi(parts[1])
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	d := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	return d, true
}
