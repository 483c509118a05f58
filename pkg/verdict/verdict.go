package verdict

// Verdict classifies the outcome of a single test case. Compile stage
// failures abort the whole invocation and never appear as a Verdict.
type Verdict int

const (
	Passed Verdict = iota
	WrongAnswer
	RuntimeError
	Timeout
	MemoryExceeded
	SandboxError
	CheckerError
	IoError
	GenerateWritten
)

// All lists every verdict in display order.
var All = []Verdict{
	Passed,
	GenerateWritten,
	WrongAnswer,
	Timeout,
	MemoryExceeded,
	RuntimeError,
	SandboxError,
	CheckerError,
	IoError,
}

func (v Verdict) String() string {
	switch v {
	case Passed:
		return "passed"
	case WrongAnswer:
		return "wrong answer"
	case RuntimeError:
		return "runtime error"
	case Timeout:
		return "timed out"
	case MemoryExceeded:
		return "out of memory"
	case SandboxError:
		return "sandbox error"
	case CheckerError:
		return "checker error"
	case IoError:
		return "io error"
	case GenerateWritten:
		return "generated"
	}
	return "unknown"
}

// Plural returns the summary-line form for a count of n results.
func (v Verdict) Plural(n int) string {
	if n == 1 {
		return v.String()
	}
	switch v {
	case WrongAnswer:
		return "wrong answers"
	case RuntimeError:
		return "runtime errors"
	case SandboxError:
		return "sandbox errors"
	case CheckerError:
		return "checker errors"
	case IoError:
		return "io errors"
	}
	return v.String()
}

// OK reports whether v counts towards overall success.
func (v Verdict) OK() bool {
	return v == Passed || v == GenerateWritten
}
