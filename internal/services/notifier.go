package services

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/feedback"
	"github.com/yungbote/speakwell-backend/internal/realtime"
)

// Notifier pushes change events to the owning user's stream. Every method is
// fire-and-forget and safe on a nil receiver.
type Notifier interface {
	EvaluationReceived(ownerID uuid.UUID, speech *types.Speech, eval *types.Evaluation, stats feedback.Stats)
	SpeechShared(ownerID uuid.UUID, speechID uuid.UUID, shareURL string)
	SpeechUpdated(ownerID uuid.UUID, speech *types.Speech)
	SpeechDeleted(ownerID uuid.UUID, speechID uuid.UUID)
	SkillsUpdated(userID uuid.UUID, skills []*types.UserSkill)
	ProfileUpdated(userID uuid.UUID, profile *types.Profile)
	AvatarUpdated(userID uuid.UUID, avatarURL string)
}

type notifier struct {
	emit SSEEmitter
}

func NewNotifier(emit SSEEmitter) Notifier {
	return &notifier{emit: emit}
}

func (n *notifier) send(userID uuid.UUID, event realtime.SSEEvent, data map[string]any) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: realtime.UserChannel(userID),
		Event:   event,
		Data:    data,
	})
}

func (n *notifier) EvaluationReceived(ownerID uuid.UUID, speech *types.Speech, eval *types.Evaluation, stats feedback.Stats) {
	if speech == nil || eval == nil {
		return
	}
	n.send(ownerID, realtime.SSEEventEvaluationReceived, map[string]any{
		"speech_id":        speech.ID,
		"speech_title":     speech.Title,
		"evaluation_id":    eval.ID,
		"evaluator_name":   eval.EvaluatorName,
		"evaluation_type":  eval.EvaluationType,
		"evaluation_count": stats.EvaluationCount,
		"average":          feedback.Round(stats.Average, 2),
	})
}

func (n *notifier) SpeechShared(ownerID uuid.UUID, speechID uuid.UUID, shareURL string) {
	n.send(ownerID, realtime.SSEEventSpeechShared, map[string]any{
		"speech_id": speechID,
		"share_url": shareURL,
	})
}

func (n *notifier) SpeechUpdated(ownerID uuid.UUID, speech *types.Speech) {
	if speech == nil {
		return
	}
	n.send(ownerID, realtime.SSEEventSpeechUpdated, map[string]any{
		"speech_id": speech.ID,
		"speech":    speech,
	})
}

func (n *notifier) SpeechDeleted(ownerID uuid.UUID, speechID uuid.UUID) {
	n.send(ownerID, realtime.SSEEventSpeechUpdated, map[string]any{
		"speech_id": speechID,
		"deleted":   true,
	})
}

func (n *notifier) SkillsUpdated(userID uuid.UUID, skills []*types.UserSkill) {
	n.send(userID, realtime.SSEEventSkillsUpdated, map[string]any{
		"skills": skills,
	})
}

func (n *notifier) ProfileUpdated(userID uuid.UUID, profile *types.Profile) {
	n.send(userID, realtime.SSEEventProfileUpdated, map[string]any{
		"profile": profile,
	})
}

func (n *notifier) AvatarUpdated(userID uuid.UUID, avatarURL string) {
	n.send(userID, realtime.SSEEventAvatarUpdated, map[string]any{
		"avatar_url": avatarURL,
	})
}
