package core

// Stage is the two-valued training stage driving the eviction policy.
type Stage int

const (
	// StageWarmup: the access trace is being recorded.
	StageWarmup Stage = iota
	// StageSteady: the recorded trace predicts future accesses.
	StageSteady
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageWarmup:
		return "warmup"
	case StageSteady:
		return "steady"
	default:
		return "unknown"
	}
}

// Metronome is the process-wide counter of the current training step.
// It is a pure state holder: the training loop advances it externally,
// once per step, from a single goroutine.
type Metronome struct {
	step  int64
	stage Stage
}

// NewMetronome starts at step 0 in the warmup stage.
func NewMetronome() *Metronome {
	return &Metronome{stage: StageWarmup}
}

// Tick advances the step counter by one.
func (m *Metronome) Tick() {
	m.step++
}

// ResetStep rewinds the step counter to zero at an iteration boundary, so
// steady-state steps line up with the recorded warmup trace positions.
func (m *Metronome) ResetStep() {
	m.step = 0
}

// Step returns the current training step.
func (m *Metronome) Step() int64 {
	return m.step
}

// Stage returns the current training stage.
func (m *Metronome) Stage() Stage {
	return m.stage
}

// SetStage switches between warmup and steady.
func (m *Metronome) SetStage(s Stage) {
	m.stage = s
}

// IsWarmup reports whether the trace is still being recorded.
func (m *Metronome) IsWarmup() bool {
	return m.stage == StageWarmup
}
