package domain

// UnitFailure records why one unit did not produce an artifact.
type UnitFailure struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// RunReport summarises a pipeline run by unit outcome.
type RunReport struct {
	Completed []string      `json:"completed"`
	NotFound  []string      `json:"not_found"`
	Failed    []UnitFailure `json:"failed"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (r RunReport) Clone() RunReport {
	return RunReport{
		Completed: append([]string{}, r.Completed...),
		NotFound:  append([]string{}, r.NotFound...),
		Failed:    append([]UnitFailure{}, r.Failed...),
	}
}
