package speech

type Stage int

const (
	StageReceived Stage = iota
	StageValidatingInput
	StageStagingReference
	StageSynthesizing
	StagePostProcessing
	StageResponding
	StageCleanupReference
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageValidatingInput:
		return "validating_input"
	case StageStagingReference:
		return "staging_reference"
	case StageSynthesizing:
		return "synthesizing"
	case StagePostProcessing:
		return "post_processing"
	case StageResponding:
		return "responding"
	case StageCleanupReference:
		return "cleanup_reference"
	default:
		return "unknown"
	}
}
