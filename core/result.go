package core

// Status is the terminal state of a unit of work.
type Status int

const (
	// StatusSuccess means the work completed and produced output.
	StatusSuccess Status = iota
	// StatusFailed means the work could not complete; Err describes why.
	StatusFailed
	// StatusConverged means an iterative agent observed its stop condition.
	StatusConverged
	// StatusExhausted means an iterative agent hit its step bound. It is a normal outcome.
	StatusExhausted
	// StatusCancelled means the run observed an external cancellation.
	StatusCancelled
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusConverged:
		return "converged"
	case StatusExhausted:
		return "exhausted"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is the outcome of an agent run, subtask, step or turn.
type Result struct {
	Status Status
	Output string
	// Err is set for StatusFailed and StatusCancelled.
	Err error
	// Steps counts delegate calls, turns or attempts consumed by the producing agent.
	Steps int
	// LowConfidence marks output returned after validation retries ran out.
	LowConfidence bool
	// Incomplete marks output produced by a generation that hit the tool iteration cap.
	Incomplete bool
	// Children holds per-unit results of composite agents, in execution order.
	Children []Result
}

// Success builds a successful result.
func Success(output string) Result {
	return Result{Status: StatusSuccess, Output: output}
}

// Failure builds a failed result. Cancellation errors yield StatusCancelled.
func Failure(output string, err error) Result {
	status := StatusFailed
	if KindOf(err) == KindCancelled {
		status = StatusCancelled
	}
	return Result{Status: status, Output: output, Err: err}
}

// OK reports whether the result carries usable output (success, converged or exhausted).
func (r Result) OK() bool {
	return r.Status != StatusFailed && r.Status != StatusCancelled
}

// Kind returns the error kind of the result, or KindNone.
func (r Result) Kind() ErrorKind { return KindOf(r.Err) }
