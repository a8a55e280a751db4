package domain

// RiskLevel classifies a composite risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Rank returns the ordering of levels, LOW lowest.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	}
	return -1
}

// LevelForScore maps a composite score in [0,100] to a risk level.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score < 25:
		return RiskLow
	case score < 50:
		return RiskMedium
	case score < 75:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// Confidence describes how complete the inputs to an assessment were.
type Confidence string

const (
	ConfidenceFull    Confidence = "full"
	ConfidencePartial Confidence = "partial" // oracle unavailable or signals missing
)

// RiskFactor records one signal's contribution to the composite score.
type RiskFactor struct {
	Name         string  // signal name, e.g. "honeypot", "buy_tax"
	Value        string  // observed value, human-readable
	Weight       float64 // weight in the composite
	Contribution float64 // weighted score points added
	Missing      bool    // signal absent; contributed zero
}

// RiskAssessment is the screener's verdict for one pool, derived from the
// pool's TokenInfo at a specific revision. Downstream stages consume it
// read-only; a changed TokenInfo produces a fresh assessment.
type RiskAssessment struct {
	Chain        string
	PoolAddress  string
	TokenAddress string

	Score   float64 // clamped to [0,100]
	Level   RiskLevel
	Factors []RiskFactor

	Confidence    Confidence
	OracleChecked bool  // security oracle consulted successfully
	OracleFlagged bool  // oracle reported malicious behavior
	InfoRevision  int64
	AssessedAt    int64 // ms
}
