package outcome

import "fmt"

// ReasonNoRecords explains the verdict of an empty session.
const ReasonNoRecords = "no log records"

// Verdict is the outcome of one session.
type Verdict struct {
	Reason   string
	Failures []Record
	Records  int
	Passed   bool
}

// Evaluator reduces a session's records to a verdict under a [Policy].
type Evaluator struct {
	policy Policy
}

// NewEvaluator creates an evaluator for policy.
func NewEvaluator(policy Policy) *Evaluator {
	return &Evaluator{policy: policy}
}

// Policy returns the evaluator's policy.
func (e *Evaluator) Policy() Policy {
	return e.policy
}

// Evaluate reports whether the session described by records passed.
func (e *Evaluator) Evaluate(records []Record) bool {
	return e.Assess(records).Passed
}

// Assess evaluates records and keeps the failing ones for reporting. records
// is not modified.
func (e *Evaluator) Assess(records []Record) Verdict {
	if len(records) == 0 {
		return Verdict{Reason: ReasonNoRecords}
	}

	verdict := Verdict{Records: len(records)}

	for _, rec := range records {
		if e.policy.Fails(rec) {
			verdict.Failures = append(verdict.Failures, rec)
		}
	}

	verdict.Passed = len(verdict.Failures) == 0
	if !verdict.Passed {
		verdict.Reason = fmt.Sprintf("%d of %d records failed at level %s", len(verdict.Failures), len(records), LevelName(e.policy.FailLevel))
	}

	return verdict
}

// Evaluate applies [DefaultPolicy] to records.
func Evaluate(records []Record) bool {
	return NewEvaluator(DefaultPolicy()).Evaluate(records)
}
