package provisioning

import (
	"slices"

	"github.com/onkernel/nasattach/lib/storage"
)

// Step names a state of the provisioning state machine.
type Step string

const (
	StepStart               Step = "Start"
	StepFileSystemCreated   Step = "FileSystemCreated"
	StepExportPolicyBound   Step = "ExportPolicyBound"
	StepQuotaPolicyBound    Step = "QuotaPolicyBound"
	StepSnapshotPolicyBound Step = "SnapshotPolicyBound"
	StepAutodirPolicyBound  Step = "AutodirPolicyBound"
	StepExportResolved      Step = "ExportResolved"
	StepDone                Step = "Done"
)

func (s Step) String() string {
	return string(s)
}

// Outcome tags a StepResult.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeSkipped Outcome = "skipped"
	OutcomeWarning Outcome = "warning"
	OutcomeFatal   Outcome = "fatal"
)

// failurePolicy decides what a failed step means for the run.
var failurePolicy = map[Step]Outcome{
	StepFileSystemCreated:   OutcomeFatal,
	StepExportPolicyBound:   OutcomeFatal,
	StepQuotaPolicyBound:    OutcomeWarning,
	StepSnapshotPolicyBound: OutcomeWarning,
	StepAutodirPolicyBound:  OutcomeWarning,
	StepExportResolved:      OutcomeFatal,
}

// FailureOutcome returns the outcome recorded when step fails. Unknown
// steps are fatal.
func FailureOutcome(step Step) Outcome {
	if o, ok := failurePolicy[step]; ok {
		return o
	}
	return OutcomeFatal
}

// StepResult is the typed result of one step.
type StepResult struct {
	Step    Step    `json:"step"`
	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`

	err error
}

// Err returns the underlying error of a warning or fatal result.
func (r StepResult) Err() error {
	return r.err
}

func succeeded(step Step) StepResult {
	return StepResult{Step: step, Outcome: OutcomeSuccess}
}

func skipped(step Step) StepResult {
	return StepResult{Step: step, Outcome: OutcomeSkipped}
}

func failed(step Step, err error) StepResult {
	return StepResult{Step: step, Outcome: FailureOutcome(step), Error: err.Error(), err: err}
}

// Progress accumulates what earlier steps produced. Steps receive a value
// and return a new one; a Progress is never modified in place.
type Progress struct {
	Request    Request
	FileSystem *storage.FileSystemHandle
	Bindings   []storage.PolicyBinding
	Export     *storage.ExportDescriptor
	Results    []StepResult
}

func (p Progress) withFileSystem(fs storage.FileSystemHandle) Progress {
	p.FileSystem = &fs
	return p
}

func (p Progress) withBinding(b storage.PolicyBinding) Progress {
	p.Bindings = append(slices.Clone(p.Bindings), b)
	return p
}

func (p Progress) withExport(e storage.ExportDescriptor) Progress {
	p.Export = &e
	return p
}

func (p Progress) withResult(r StepResult) Progress {
	p.Results = append(slices.Clone(p.Results), r)
	return p
}

// directory is the managed directory every policy is bound to.
func (p Progress) directory() string {
	if p.FileSystem == nil {
		return ""
	}
	return p.FileSystem.Directory
}
