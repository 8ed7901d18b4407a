package providers

import "context"

// CompletionRequest is the structured clinical context sent to the
// text-completion provider.
type CompletionRequest struct {
	TypeActe            string
	DescriptionClinique string
	MaterielUtilise     string
	DureeActe           int
	Modificateurs       []string
	Etablissement       string
	Service             string

	// CandidateCodes are catalog hints (code + libelle pairs) retrieved
	// by label search; empty when search is unavailable.
	CandidateCodes []CandidateCode

	// Task selects the prompt family: suggestion or anomaly detection.
	Task CompletionTask
}

// CandidateCode is one catalog hint attached to a completion request.
type CandidateCode struct {
	Code    string
	Libelle string
}

// CompletionTask selects the prompt used for a completion call.
type CompletionTask string

const (
	TaskSuggestion       CompletionTask = "suggestion"
	TaskAnomalyDetection CompletionTask = "anomaly_detection"
)

// CompletionProvider is the external text-completion collaborator. It
// returns the raw completion text; parsing and validation of the embedded
// JSON object belong to the caller.
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
