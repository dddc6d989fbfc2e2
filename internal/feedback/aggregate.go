package feedback

import (
	"math"
	"sort"

	"github.com/google/uuid"

	types "github.com/yungbote/speakwell-backend/internal/domain"
)

// UnknownSkillName labels scores whose skill is no longer attached to the speech.
const UnknownSkillName = "Unknown"

type SkillAverage struct {
	SkillID   uuid.UUID `json:"skill_id"`
	SkillName string    `json:"skill_name"`
	Average   float64   `json:"average"`
	Count     int       `json:"count"`
}

// Stats is the aggregate view of one speech's evaluations.
type Stats struct {
	EvaluationCount int            `json:"evaluation_count"`
	ScoreCount      int            `json:"score_count"`
	Average         float64        `json:"average"`
	SkillAverages   []SkillAverage `json:"skill_averages"`
}

// Mean is the plain arithmetic mean; zero for no values.
func Mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

// Round rounds to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Aggregate computes per-skill averages and the speech-level average over
// every individual score. Skills follow the order of speechSkills; scores for
// skills that are no longer attached come last, ordered by id.
func Aggregate(speechSkills []types.SpeechSkill, evals []*types.Evaluation) Stats {
	byID := map[uuid.UUID][]int{}
	var all []int
	for _, e := range evals {
		if e == nil {
			continue
		}
		for _, s := range e.Scores {
			byID[s.SkillID] = append(byID[s.SkillID], s.Score)
			all = append(all, s.Score)
		}
	}

	out := Stats{
		EvaluationCount: len(evals),
		ScoreCount:      len(all),
		Average:         Mean(all),
		SkillAverages:   make([]SkillAverage, 0, len(byID)),
	}

	seen := map[uuid.UUID]bool{}
	for _, ss := range speechSkills {
		if seen[ss.SkillID] {
			continue
		}
		seen[ss.SkillID] = true
		name := UnknownSkillName
		if ss.Skill != nil {
			name = ss.Skill.Name
		}
		vals := byID[ss.SkillID]
		out.SkillAverages = append(out.SkillAverages, SkillAverage{
			SkillID:   ss.SkillID,
			SkillName: name,
			Average:   Mean(vals),
			Count:     len(vals),
		})
	}

	var orphans []uuid.UUID
	for id := range byID {
		if !seen[id] {
			orphans = append(orphans, id)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].String() < orphans[j].String() })
	for _, id := range orphans {
		out.SkillAverages = append(out.SkillAverages, SkillAverage{
			SkillID:   id,
			SkillName: UnknownSkillName,
			Average:   Mean(byID[id]),
			Count:     len(byID[id]),
		})
	}
	return out
}

// Scored drops skills that have not received any score yet.
func (s Stats) Scored() []SkillAverage {
	out := make([]SkillAverage, 0, len(s.SkillAverages))
	for _, a := range s.SkillAverages {
		if a.Count > 0 {
			out = append(out, a)
		}
	}
	return out
}

// AverageFor returns the average for one skill, or 0 when it has no scores.
func (s Stats) AverageFor(skillID uuid.UUID) float64 {
	for _, a := range s.SkillAverages {
		if a.SkillID == skillID {
			return a.Average
		}
	}
	return 0
}
