package walk

// stepProcessor performs the analyze phase for a position handed over by
// the sequencer. It never evaluates the bound: termination policy lives
// only in Engine.Begin.
type stepProcessor struct {
	rec *Recorder
}

// process records Analyze(pos) and returns the position at which the
// sequencer resumes.
func (s stepProcessor) process(pos Position) Position {
	s.rec.Record(PhaseAnalyze, pos)
	return pos + 1
}
