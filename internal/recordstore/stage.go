package recordstore

// Stage is how far a record has progressed. Stages only advance.
type Stage int

const (
	StageListed Stage = iota
	StageFetched
	StageDetailed
	StageDecoded
)

func (s Stage) String() string {
	switch s {
	case StageListed:
		return "listed"
	case StageFetched:
		return "fetched"
	case StageDetailed:
		return "detailed"
	case StageDecoded:
		return "decoded"
	default:
		return "unknown"
	}
}
