package domain

// ProviderStatus is the status vocabulary reported by the inference provider.
type ProviderStatus string

const (
	ProviderStarting   ProviderStatus = "starting"
	ProviderProcessing ProviderStatus = "processing"
	ProviderSucceeded  ProviderStatus = "succeeded"
	ProviderFailed     ProviderStatus = "failed"
	ProviderCanceled   ProviderStatus = "canceled"
)

// Valid reports whether s is one of the known provider statuses.
func (s ProviderStatus) Valid() bool {
	switch s {
	case ProviderStarting, ProviderProcessing, ProviderSucceeded, ProviderFailed, ProviderCanceled:
		return true
	}
	return false
}

// TargetStatus maps a provider status onto the domain status for the given
// kind. A success without output is a failure.
func TargetStatus(kind JobKind, status ProviderStatus, hasOutput bool) (JobStatus, error) {
	training := kind.IsTraining()
	switch status {
	case ProviderStarting, ProviderProcessing:
		if training {
			return ModelStatusTraining, nil
		}
		return JobStatusProcessing, nil
	case ProviderSucceeded:
		if !hasOutput {
			return failedStatus(training), nil
		}
		if training {
			return ModelStatusReady, nil
		}
		return JobStatusCompleted, nil
	case ProviderFailed:
		return failedStatus(training), nil
	case ProviderCanceled:
		if training {
			return ModelStatusDraft, nil
		}
		return JobStatusCancelled, nil
	}
	return "", ErrInvalidStatus
}

func failedStatus(training bool) JobStatus {
	if training {
		return ModelStatusError
	}
	return JobStatusFailed
}

func statusRank(s JobStatus) int {
	switch s {
	case JobStatusPending, ModelStatusDraft:
		return 0
	case JobStatusProcessing, ModelStatusTraining:
		return 1
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled, ModelStatusReady, ModelStatusError:
		return 2
	}
	return -1
}

// CanTransition reports whether the job may move to the target status.
// Terminal jobs never move; non-terminal jobs only move forward, except that a
// running job may receive repeated progress updates and a training job may be
// cancelled back to DRAFT.
func (j *Job) CanTransition(to JobStatus) bool {
	if j == nil || j.IsTerminal() {
		return false
	}
	from, target := statusRank(j.Status), statusRank(to)
	if from < 0 || target < 0 {
		return false
	}
	if j.Kind.IsTraining() && to == ModelStatusDraft {
		return true
	}
	if target > from {
		return true
	}
	return target == 1 && from == 1
}

// ProviderStatusFor renders a domain status back into the provider vocabulary
// used on the realtime channel.
func ProviderStatusFor(s JobStatus, incoming ProviderStatus) ProviderStatus {
	switch s {
	case JobStatusCompleted, ModelStatusReady:
		return ProviderSucceeded
	case JobStatusFailed, ModelStatusError:
		return ProviderFailed
	case JobStatusCancelled:
		return ProviderCanceled
	case ModelStatusDraft:
		if incoming == ProviderCanceled {
			return ProviderCanceled
		}
	}
	if incoming == ProviderStarting {
		return ProviderStarting
	}
	return ProviderProcessing
}
