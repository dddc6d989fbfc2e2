package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/speakwell-backend/internal/data/repos/testutil"
	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/platform/sendgrid"
)

type captureMailer struct {
	reqs []sendgrid.Message
}

func (m *captureMailer) Send(_ context.Context, msg sendgrid.Message) (*sendgrid.Receipt, error) {
	m.reqs = append(m.reqs, msg)
	return &sendgrid.Receipt{StatusCode: 202, MessageID: "msg-1"}, nil
}

func TestSendInvitesReusesLiveLink(t *testing.T) {
	env := newTestEnv(t)
	speeches, _ := newSpeechService(t, env)
	cards, err := NewShareCardService(env.log, nil)
	if err != nil {
		t.Fatalf("NewShareCardService: %v", err)
	}
	mailer := &captureMailer{}
	invites := NewInviteService(env.log, mailer, speeches, cards, env.rs.Profile)

	owner := testutil.SeedProfile(t, env.ctx, env.db, "inviter@example.com")
	a := testutil.SeedSkill(t, env.ctx, env.db, "Clarity", "Delivery")
	sp := testutil.SeedSpeech(t, env.ctx, env.db, owner.ID, "Board update", a.ID)

	if _, err := invites.SendInvites(env.ctx, owner.ID, sp.ID, InviteInput{Emails: []string{"not-an-email"}}); !errors.Is(err, types.ErrInvalidArgument) {
		t.Fatalf("SendInvites(bad): expected ErrInvalidArgument, got %v", err)
	}

	res, err := invites.SendInvites(env.ctx, owner.ID, sp.ID, InviteInput{
		Emails:  []string{"kim@example.com", "Lee <lee@example.com>", "KIM@example.com"},
		Message: "Be honest!",
	})
	if err != nil {
		t.Fatalf("SendInvites: %v", err)
	}
	if res.Sent != 2 {
		t.Fatalf("SendInvites: sent=%d want 2", res.Sent)
	}
	req := mailer.reqs[0]
	if len(req.Recipients) != 2 || req.ReplyTo == nil || req.ReplyTo.Email != owner.Email {
		t.Fatalf("recipients: to=%v reply=%v", req.Recipients, req.ReplyTo)
	}
	if !strings.Contains(req.Text, res.ShareURL) || !strings.Contains(req.Text, "Be honest!") {
		t.Fatalf("text body: %q", req.Text)
	}
	if len(req.Inline) != 1 || req.Inline[0].ContentID != shareCardContentID {
		t.Fatalf("inline images: %+v", req.Inline)
	}

	again, err := invites.SendInvites(env.ctx, owner.ID, sp.ID, InviteInput{Emails: []string{"sam@example.com"}})
	if err != nil {
		t.Fatalf("SendInvites (again): %v", err)
	}
	if again.ShareURL != res.ShareURL {
		t.Fatalf("second invite minted a new link: %q != %q", again.ShareURL, res.ShareURL)
	}

	off := NewInviteService(env.log, nil, speeches, cards, env.rs.Profile)
	if _, err := off.SendInvites(env.ctx, owner.ID, sp.ID, InviteInput{Emails: []string{"x@example.com"}}); !errors.Is(err, types.ErrUnavailable) {
		t.Fatalf("SendInvites(no mailer): expected ErrUnavailable, got %v", err)
	}
}
