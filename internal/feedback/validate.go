package feedback

import (
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/domain/evaluation"
	"github.com/yungbote/speakwell-backend/internal/domain/speech"
)

const (
	MsgNameRequired     = "Please enter your name"
	MsgRateAllSkills    = "Please rate all skills (1-5 stars each)"
	MsgSkillNotOnSpeech = "Rated skill is not part of this speech"

	MsgTitleRequired   = "Please enter a speech title"
	MsgSkillRequired   = "Please select at least one skill to practice"
	MsgTooManySkills   = "You can select a maximum of 5 skills to focus on"
	MsgDuplicateSkills = "Each skill can only be selected once"
)

// ValidationError carries every problem found in one input, in a stable order.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return "validation failed"
	}
	return strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error { return types.ErrInvalidArgument }

type collector struct{ problems []string }

func (c *collector) add(msg string) { c.problems = append(c.problems, msg) }

func (c *collector) err() error {
	if len(c.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: c.problems}
}

// Submission is a filled-in evaluation form.
type Submission struct {
	EvaluatorName       string
	Scores              map[uuid.UUID]int
	WhatWentWell        string
	WhatCouldBeImproved string
}

// ValidateSubmission checks a form against the skills attached to the speech.
// Free-text fields are optional. Scores outside 1..5 count as missing.
func ValidateSubmission(sub Submission, speechSkillIDs []uuid.UUID) error {
	var c collector
	if strings.TrimSpace(sub.EvaluatorName) == "" {
		c.add(MsgNameRequired)
	}

	attached := make(map[uuid.UUID]bool, len(speechSkillIDs))
	missing := false
	for _, id := range speechSkillIDs {
		attached[id] = true
		if !evaluation.ValidScore(sub.Scores[id]) {
			missing = true
		}
	}
	if missing {
		c.add(MsgRateAllSkills)
	}
	for id := range sub.Scores {
		if !attached[id] {
			c.add(MsgSkillNotOnSpeech)
			break
		}
	}
	return c.err()
}

// ValidateSpeech checks a title and skill selection for a new speech.
func ValidateSpeech(title string, skillIDs []uuid.UUID) error {
	var c collector
	if strings.TrimSpace(title) == "" {
		c.add(MsgTitleRequired)
	}
	c.skillSet(skillIDs)
	return c.err()
}

// ValidateSkillSet checks a replacement skill selection for an existing speech.
func ValidateSkillSet(skillIDs []uuid.UUID) error {
	var c collector
	c.skillSet(skillIDs)
	return c.err()
}

func (c *collector) skillSet(skillIDs []uuid.UUID) {
	switch {
	case len(skillIDs) < speech.MinSkills:
		c.add(MsgSkillRequired)
	case len(skillIDs) > speech.MaxSkills:
		c.add(MsgTooManySkills)
	}
	seen := make(map[uuid.UUID]bool, len(skillIDs))
	for _, id := range skillIDs {
		if seen[id] {
			c.add(MsgDuplicateSkills)
			return
		}
		seen[id] = true
	}
}
