package session

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cardsmith/cardsmith-server-go/internal/game/engine"
)

const replayVersion = 1

// Frame is one recorded step: the action that produced it (nil for the
// opening deal), the public table afterwards and a checksum of the full state.
type Frame struct {
	Seq      int
	Action   *engine.ActionResult
	View     *engine.View
	Checksum string
}

// Replay is the ordered list of frames of one session with a playback cursor.
type Replay struct {
	SessionID    string
	Frames       []*Frame
	CurrentIndex int
	mu           sync.RWMutex
}

// NewReplay creates an empty replay.
func NewReplay(sessionID string) *Replay {
	return &Replay{
		SessionID: sessionID,
		Frames:    make([]*Frame, 0),
	}
}

// Record appends a frame and stamps its sequence number.
func (r *Replay) Record(frame *Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frame.Seq = len(r.Frames)
	r.Frames = append(r.Frames, frame)
}

// Start rewinds playback.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.CurrentIndex = 0
}

// Next returns the frame under the cursor and advances it.
func (r *Replay) Next() *Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex < len(r.Frames) {
		f := r.Frames[r.CurrentIndex]
		r.CurrentIndex++
		return f
	}
	return nil
}

// Previous steps the cursor back and returns that frame.
func (r *Replay) Previous() *Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex > 0 {
		r.CurrentIndex--
		return r.Frames[r.CurrentIndex]
	}
	return nil
}

// Skip moves the cursor by count frames, clamped to the recording.
func (r *Replay) Skip(count int) *Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.CurrentIndex + count
	if idx >= len(r.Frames) {
		idx = len(r.Frames) - 1
	}
	if idx < 0 {
		idx = 0
	}
	r.CurrentIndex = idx
	if idx < len(r.Frames) {
		return r.Frames[idx]
	}
	return nil
}

// Size returns the number of frames.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.Frames)
}

// FrameAt returns the frame at index, or nil.
func (r *Replay) FrameAt(index int) *Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index >= 0 && index < len(r.Frames) {
		return r.Frames[index]
	}
	return nil
}

type replayMetadata struct {
	SessionID  string
	Timestamp  time.Time
	Version    int
	FrameCount int
}

// SaveToFile writes <directory>/<session>.replay as gzip-compressed gob.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(replayPath(directory, r.SessionID))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	defer gz.Close()

	enc := gob.NewEncoder(gz)
	meta := replayMetadata{
		SessionID:  r.SessionID,
		Timestamp:  time.Now(),
		Version:    replayVersion,
		FrameCount: len(r.Frames),
	}
	if err := enc.Encode(&meta); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	for i, f := range r.Frames {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("failed to encode frame %d: %w", i, err)
		}
	}
	return nil
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(directory, sessionID string) (*Replay, error) {
	file, err := os.Open(replayPath(directory, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	dec := gob.NewDecoder(gz)
	var meta replayMetadata
	if err := dec.Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if meta.Version != replayVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", meta.Version)
	}

	replay := NewReplay(meta.SessionID)
	for i := 0; i < meta.FrameCount; i++ {
		var f Frame
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to decode frame %d: %w", i, err)
		}
		replay.Frames = append(replay.Frames, &f)
	}
	return replay, nil
}

func replayPath(directory, sessionID string) string {
	return filepath.Join(directory, sessionID+".replay")
}

// ReplayRecorder keeps one replay per session being recorded.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	replays map[string]*Replay
	enabled map[string]bool
	saveDir string
}

// NewReplayRecorder creates a recorder saving into saveDir. An empty saveDir
// keeps replays in memory only.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	return &ReplayRecorder{
		logger:  logger,
		replays: make(map[string]*Replay),
		enabled: make(map[string]bool),
		saveDir: saveDir,
	}
}

// StartRecording begins a fresh replay for the session.
func (rr *ReplayRecorder) StartRecording(sessionID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.replays[sessionID] = NewReplay(sessionID)
	rr.enabled[sessionID] = true

	if rr.logger != nil {
		rr.logger.Info("started replay recording", zap.String("session_id", sessionID))
	}
}

// StopRecording keeps the replay but ignores further frames.
func (rr *ReplayRecorder) StopRecording(sessionID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.enabled[sessionID] = false
}

// IsRecording reports whether frames for the session are being kept.
func (rr *ReplayRecorder) IsRecording(sessionID string) bool {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	return rr.enabled[sessionID]
}

// Record appends a frame for the session if recording is on.
func (rr *ReplayRecorder) Record(sessionID string, frame *Frame) {
	rr.mu.RLock()
	enabled := rr.enabled[sessionID]
	replay := rr.replays[sessionID]
	rr.mu.RUnlock()

	if !enabled || replay == nil {
		return
	}
	replay.Record(frame)

	if rr.logger != nil {
		rr.logger.Debug("recorded replay frame",
			zap.String("session_id", sessionID),
			zap.Int("frame_count", replay.Size()),
		)
	}
}

// GetReplay returns the in-memory replay of a session.
func (rr *ReplayRecorder) GetReplay(sessionID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	replay, ok := rr.replays[sessionID]
	return replay, ok
}

// SaveReplay writes the replay to disk and drops it from memory.
func (rr *ReplayRecorder) SaveReplay(sessionID string) error {
	if rr.saveDir == "" {
		return fmt.Errorf("replay directory not configured")
	}
	rr.mu.Lock()
	replay, ok := rr.replays[sessionID]
	if !ok {
		rr.mu.Unlock()
		return fmt.Errorf("no replay found for session %s", sessionID)
	}
	delete(rr.replays, sessionID)
	delete(rr.enabled, sessionID)
	rr.mu.Unlock()

	if err := replay.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}

	if rr.logger != nil {
		rr.logger.Info("saved replay to disk",
			zap.String("session_id", sessionID),
			zap.Int("frame_count", replay.Size()),
			zap.String("directory", rr.saveDir),
		)
	}
	return nil
}

// LoadReplay reads a saved replay from the recorder's directory.
func (rr *ReplayRecorder) LoadReplay(sessionID string) (*Replay, error) {
	return LoadReplayFromFile(rr.saveDir, sessionID)
}

// ClearReplay drops a replay without saving it.
func (rr *ReplayRecorder) ClearReplay(sessionID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	delete(rr.replays, sessionID)
	delete(rr.enabled, sessionID)
}
