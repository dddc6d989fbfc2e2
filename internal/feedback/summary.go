package feedback

import (
	"fmt"
	"sort"
	"strings"

	types "github.com/yungbote/speakwell-backend/internal/domain"
)

const (
	strengthThreshold    = 4.0
	improvementThreshold = 3.5
	maxListed            = 4
	maxPracticeAreas     = 3
)

// Summary is the templated feedback report for one speech.
type Summary struct {
	OverallScore    float64  `json:"overall_score"`
	Strengths       []string `json:"strengths"`
	Improvements    []string `json:"improvements"`
	Recommendations []string `json:"recommendations"`
	PracticeAreas   []string `json:"practice_areas"`
	PracticeTips    []string `json:"practice_tips"`
	NextSteps       []string `json:"next_steps"`
}

// EmptySummary is returned for a speech nobody has evaluated yet.
func EmptySummary() Summary {
	return Summary{
		OverallScore:    0,
		Strengths:       []string{"No evaluations available for analysis"},
		Improvements:    []string{"Share your speech to receive evaluations first"},
		Recommendations: []string{"Get feedback from multiple evaluators for comprehensive insights"},
		PracticeAreas:   []string{},
		PracticeTips:    []string{"Record yourself practicing to identify areas for improvement"},
		NextSteps:       []string{"Share your speech link with colleagues, friends, or mentors"},
	}
}

type tipRule struct {
	keywords []string
	tip      string
}

var practiceTipRules = []tipRule{
	{[]string{"vocal", "voice"}, "Practice vocal exercises: vary your pace, volume, and tone daily"},
	{[]string{"body", "gesture"}, "Record yourself speaking to observe and improve your body language"},
	{[]string{"confidence"}, "Practice in front of a mirror and gradually increase audience size"},
	{[]string{"structure", "content"}, "Outline your speeches with clear introduction, body, and conclusion"},
	{[]string{"audience", "engagement"}, "Practice asking questions and making eye contact with different audience members"},
}

type recommendationRule struct {
	keywords      []string
	matchPositive bool
	text          string
}

var recommendationRules = []recommendationRule{
	{[]string{"pace", "speed"}, false, "Work on speaking pace - practice with a metronome or timer"},
	{[]string{"eye contact"}, true, "Continue developing eye contact skills across the entire audience"},
	{[]string{"gesture", "hand"}, false, "Practice purposeful gestures that support your message"},
	{[]string{"structure", "organization"}, false, "Focus on clear speech structure with smooth transitions"},
}

var defaultRecommendations = []string{
	"Continue practicing regularly to build consistency",
	"Seek feedback from diverse audiences for well-rounded improvement",
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func joinedLower(evals []*types.Evaluation, pick func(*types.Evaluation) string) string {
	parts := make([]string, 0, len(evals))
	for _, e := range evals {
		if e == nil {
			continue
		}
		if t := strings.TrimSpace(pick(e)); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// PracticeTip maps a skill name onto a canned practice suggestion.
func PracticeTip(skillName string) string {
	lower := strings.ToLower(skillName)
	for _, r := range practiceTipRules {
		if containsAny(lower, r.keywords) {
			return r.tip
		}
	}
	return fmt.Sprintf("Focus on %s through targeted practice sessions", lower)
}

// BuildSummary renders the report from aggregated scores and the written
// feedback. The output depends only on its inputs.
func BuildSummary(stats Stats, evals []*types.Evaluation) Summary {
	if stats.EvaluationCount == 0 || len(evals) == 0 {
		return EmptySummary()
	}

	positive := joinedLower(evals, func(e *types.Evaluation) string { return e.WhatWentWell })
	improve := joinedLower(evals, func(e *types.Evaluation) string { return e.WhatCouldBeImproved })
	scored := stats.Scored()

	strengths := make([]string, 0, maxListed)
	improvements := make([]string, 0, maxListed)
	for _, a := range scored {
		name := strings.ToLower(a.SkillName)
		if a.Average >= strengthThreshold && len(strengths) < maxListed {
			strengths = append(strengths, fmt.Sprintf("Strong %s (%.1f/5)", name, a.Average))
		}
		if a.Average < improvementThreshold && len(improvements) < maxListed {
			improvements = append(improvements, fmt.Sprintf("Improve %s (%.1f/5)", name, a.Average))
		}
	}
	if len(strengths) == 0 {
		if positive != "" {
			strengths = append(strengths, "Positive feedback received from evaluators")
		} else {
			strengths = append(strengths, "Consistent delivery across evaluations")
		}
	}
	if len(improvements) == 0 {
		if improve != "" {
			improvements = append(improvements, "Focus on areas mentioned in evaluator feedback")
		} else {
			improvements = append(improvements, "Continue refining your speaking skills")
		}
	}

	lowest := append([]SkillAverage(nil), scored...)
	sort.SliceStable(lowest, func(i, j int) bool {
		if lowest[i].Average != lowest[j].Average {
			return lowest[i].Average < lowest[j].Average
		}
		return lowest[i].SkillName < lowest[j].SkillName
	})
	if len(lowest) > maxPracticeAreas {
		lowest = lowest[:maxPracticeAreas]
	}
	practiceAreas := make([]string, 0, len(lowest))
	practiceTips := make([]string, 0, len(lowest))
	for _, a := range lowest {
		practiceAreas = append(practiceAreas, a.SkillName)
		practiceTips = append(practiceTips, PracticeTip(a.SkillName))
	}
	if len(practiceTips) == 0 {
		practiceTips = append(practiceTips, "Practice regularly and seek diverse feedback")
	}

	var recommendations []string
	for _, r := range recommendationRules {
		if containsAny(improve, r.keywords) || (r.matchPositive && containsAny(positive, r.keywords)) {
			recommendations = append(recommendations, r.text)
		}
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations, defaultRecommendations...)
	}

	focus := "your weakest skills"
	if len(practiceAreas) > 0 {
		focus = practiceAreas[0]
	}

	return Summary{
		OverallScore:    Round(stats.Average, 2),
		Strengths:       strengths,
		Improvements:    improvements,
		Recommendations: recommendations,
		PracticeAreas:   practiceAreas,
		PracticeTips:    practiceTips,
		NextSteps: []string{
			"Focus on improving " + focus,
			"Get feedback from at least 3 more evaluators",
			"Record yourself practicing to track progress",
			"Set specific goals for your next speech",
		},
	}
}
