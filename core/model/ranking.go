package model

// RankingScore breaks a technician's total score down into its weighted
// factors so callers can render why a candidate placed where it did.
// Scores are computed on demand from current calendar state and never
// persisted.
type RankingScore struct {
	TechnicianID     string  `json:"technician_id"`
	Availability     float64 `json:"availability"`
	DistanceKm       float64 `json:"distance_km"`
	DistanceScore    float64 `json:"distance_score"`
	ReliabilityScore float64 `json:"reliability_score"`
	SkillMatchScore  float64 `json:"skill_match_score"`
	PreferredBoost   float64 `json:"preferred_boost"`
	TotalScore       float64 `json:"total_score"`
}

// RankedCandidate pairs a technician with its computed score.
type RankedCandidate struct {
	Technician Technician
	Score      RankingScore
}
