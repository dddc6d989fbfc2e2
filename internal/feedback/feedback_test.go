package feedback

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	types "github.com/yungbote/speakwell-backend/internal/domain"
)

func speechSkill(name string) types.SpeechSkill {
	id := uuid.New()
	return types.SpeechSkill{SkillID: id, Skill: &types.Skill{ID: id, Name: name}}
}

func eval(wentWell, improve string, scores map[uuid.UUID]int) *types.Evaluation {
	e := &types.Evaluation{ID: uuid.New(), WhatWentWell: wentWell, WhatCouldBeImproved: improve}
	for id, v := range scores {
		e.Scores = append(e.Scores, types.EvaluationSkillScore{SkillID: id, Score: v})
	}
	return e
}

func TestAggregateFlattensSpeechAverage(t *testing.T) {
	a, b := speechSkill("A"), speechSkill("B")
	evals := []*types.Evaluation{
		eval("", "", map[uuid.UUID]int{a.SkillID: 5, b.SkillID: 1}),
		eval("", "", map[uuid.UUID]int{a.SkillID: 5}),
	}
	stats := Aggregate([]types.SpeechSkill{a, b}, evals)
	if stats.EvaluationCount != 2 || stats.ScoreCount != 3 {
		t.Fatalf("Aggregate: counts=%d/%d", stats.EvaluationCount, stats.ScoreCount)
	}
	if math.Abs(stats.Average-11.0/3.0) > 1e-9 {
		t.Fatalf("Aggregate: expected flattened 11/3, got %v", stats.Average)
	}
	if Round(stats.Average, 2) != 3.67 {
		t.Fatalf("Round: expected 3.67, got %v", Round(stats.Average, 2))
	}
	if stats.AverageFor(a.SkillID) != 5 || stats.AverageFor(b.SkillID) != 1 {
		t.Fatalf("Aggregate: unexpected skill averages %+v", stats.SkillAverages)
	}
}

func TestAggregateKeepsUnscoredAndOrphanSkills(t *testing.T) {
	a, b := speechSkill("A"), speechSkill("B")
	gone := uuid.New()
	stats := Aggregate([]types.SpeechSkill{a, b}, []*types.Evaluation{
		eval("", "", map[uuid.UUID]int{a.SkillID: 4, gone: 2}),
	})
	if len(stats.SkillAverages) != 3 {
		t.Fatalf("Aggregate: expected 3 entries, got %+v", stats.SkillAverages)
	}
	if stats.SkillAverages[1].SkillID != b.SkillID || stats.SkillAverages[1].Count != 0 {
		t.Fatalf("Aggregate: expected unscored B second, got %+v", stats.SkillAverages[1])
	}
	if stats.SkillAverages[2].SkillName != UnknownSkillName {
		t.Fatalf("Aggregate: expected orphan labelled Unknown, got %+v", stats.SkillAverages[2])
	}
	if got := len(stats.Scored()); got != 2 {
		t.Fatalf("Scored: expected 2, got %d", got)
	}
}

func TestValidateSubmissionCollectsAllProblems(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	err := ValidateSubmission(Submission{
		EvaluatorName: "   ",
		Scores:        map[uuid.UUID]int{a: 4, b: 9},
	}, []uuid.UUID{a, b})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("ValidateSubmission: expected *ValidationError, got %v", err)
	}
	want := []string{MsgNameRequired, MsgRateAllSkills}
	if diff := cmp.Diff(want, ve.Problems); diff != "" {
		t.Fatalf("ValidateSubmission problems (-want +got):\n%s", diff)
	}

	err = ValidateSubmission(Submission{
		EvaluatorName: "Jo",
		Scores:        map[uuid.UUID]int{a: 4, b: 3, uuid.New(): 5},
	}, []uuid.UUID{a, b})
	if !errors.As(err, &ve) || len(ve.Problems) != 1 || ve.Problems[0] != MsgSkillNotOnSpeech {
		t.Fatalf("ValidateSubmission: expected foreign skill rejection, got %v", err)
	}

	if err := ValidateSubmission(Submission{
		EvaluatorName: "Jo",
		Scores:        map[uuid.UUID]int{a: 1, b: 5},
	}, []uuid.UUID{a, b}); err != nil {
		t.Fatalf("ValidateSubmission: expected valid with empty free text, got %v", err)
	}
}

func TestValidateSpeech(t *testing.T) {
	ids := func(n int) []uuid.UUID {
		out := make([]uuid.UUID, n)
		for i := range out {
			out[i] = uuid.New()
		}
		return out
	}
	cases := []struct {
		name  string
		title string
		ids   []uuid.UUID
		want  []string
	}{
		{"ok one", "Intro Talk", ids(1), nil},
		{"ok five", "Intro Talk", ids(5), nil},
		{"empty both", " ", nil, []string{MsgTitleRequired, MsgSkillRequired}},
		{"too many", "T", ids(6), []string{MsgTooManySkills}},
	}
	for _, tc := range cases {
		err := ValidateSpeech(tc.title, tc.ids)
		if tc.want == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: expected *ValidationError, got %v", tc.name, err)
		}
		if diff := cmp.Diff(tc.want, ve.Problems); diff != "" {
			t.Fatalf("%s (-want +got):\n%s", tc.name, diff)
		}
	}

	dup := uuid.New()
	if err := ValidateSkillSet([]uuid.UUID{dup, dup}); err == nil {
		t.Fatalf("ValidateSkillSet: expected duplicate rejection")
	}
}

func TestBuildSummaryEmpty(t *testing.T) {
	got := BuildSummary(Stats{}, nil)
	if diff := cmp.Diff(EmptySummary(), got); diff != "" {
		t.Fatalf("BuildSummary empty (-want +got):\n%s", diff)
	}
}

func TestBuildSummaryTemplates(t *testing.T) {
	vocal := speechSkill("Vocal Variety")
	conf := speechSkill("Confidence Building")
	pace := speechSkill("Pace")
	skills := []types.SpeechSkill{vocal, conf, pace}
	evals := []*types.Evaluation{
		eval("Great eye contact", "Slow down the pace a bit", map[uuid.UUID]int{vocal.SkillID: 5, conf.SkillID: 3, pace.SkillID: 2}),
		eval("", "", map[uuid.UUID]int{vocal.SkillID: 4, conf.SkillID: 3, pace.SkillID: 3}),
	}
	got := BuildSummary(Aggregate(skills, evals), evals)

	want := Summary{
		OverallScore: 3.33,
		Strengths:    []string{"Strong vocal variety (4.5/5)"},
		Improvements: []string{"Improve confidence building (3.0/5)", "Improve pace (2.5/5)"},
		Recommendations: []string{
			"Work on speaking pace - practice with a metronome or timer",
			"Continue developing eye contact skills across the entire audience",
		},
		PracticeAreas: []string{"Pace", "Confidence Building", "Vocal Variety"},
		PracticeTips: []string{
			"Focus on pace through targeted practice sessions",
			"Practice in front of a mirror and gradually increase audience size",
			"Practice vocal exercises: vary your pace, volume, and tone daily",
		},
		NextSteps: []string{
			"Focus on improving Pace",
			"Get feedback from at least 3 more evaluators",
			"Record yourself practicing to track progress",
			"Set specific goals for your next speech",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("BuildSummary (-want +got):\n%s", diff)
	}
}

func TestBuildSummaryFallbacks(t *testing.T) {
	mid := speechSkill("Storytelling")
	evals := []*types.Evaluation{eval("", "", map[uuid.UUID]int{mid.SkillID: 3}), eval("", "", map[uuid.UUID]int{mid.SkillID: 4})}
	got := BuildSummary(Aggregate([]types.SpeechSkill{mid}, evals), evals)
	if diff := cmp.Diff([]string{"Consistent delivery across evaluations"}, got.Strengths); diff != "" {
		t.Fatalf("strengths fallback (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Continue refining your speaking skills"}, got.Improvements); diff != "" {
		t.Fatalf("improvements fallback (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(defaultRecommendations, got.Recommendations); diff != "" {
		t.Fatalf("recommendations default (-want +got):\n%s", diff)
	}

	withText := []*types.Evaluation{eval("loved it", "more energy", map[uuid.UUID]int{mid.SkillID: 3}), eval("", "", map[uuid.UUID]int{mid.SkillID: 4})}
	got = BuildSummary(Aggregate([]types.SpeechSkill{mid}, withText), withText)
	if got.Strengths[0] != "Positive feedback received from evaluators" {
		t.Fatalf("strengths text fallback: got %v", got.Strengths)
	}
	if got.Improvements[0] != "Focus on areas mentioned in evaluator feedback" {
		t.Fatalf("improvements text fallback: got %v", got.Improvements)
	}

	// Evaluations without any scores produce no practice areas.
	bare := []*types.Evaluation{eval("", "", nil)}
	got = BuildSummary(Aggregate(nil, bare), bare)
	if len(got.PracticeAreas) != 0 || got.PracticeTips[0] != "Practice regularly and seek diverse feedback" {
		t.Fatalf("no-score summary: %+v", got)
	}
	if got.NextSteps[0] != "Focus on improving your weakest skills" {
		t.Fatalf("no-score next step: %q", got.NextSteps[0])
	}
}

func TestPracticeTipKeywords(t *testing.T) {
	cases := map[string]string{
		"Body Language":       "Record yourself speaking to observe and improve your body language",
		"Content Structure":   "Outline your speeches with clear introduction, body, and conclusion",
		"Audience Engagement": "Practice asking questions and making eye contact with different audience members",
		"Voice Projection":    "Practice vocal exercises: vary your pace, volume, and tone daily",
		"Eye Contact":         "Focus on eye contact through targeted practice sessions",
	}
	for name, want := range cases {
		if got := PracticeTip(name); got != want {
			t.Fatalf("PracticeTip(%q): got %q want %q", name, got, want)
		}
	}
}
