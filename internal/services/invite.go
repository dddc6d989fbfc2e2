package services

import (
	"context"
	"fmt"
	"html"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/speakwell-backend/internal/data/repos"
	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
	"github.com/yungbote/speakwell-backend/internal/platform/sendgrid"
)

const (
	MaxInviteRecipients   = 20
	maxInviteMessageRunes = 1000
	shareCardContentID    = "share-card"
)

type InviteInput struct {
	Emails  []string `json:"emails"`
	Message string   `json:"message"`
}

type InviteResult struct {
	Sent     int    `json:"sent"`
	ShareURL string `json:"share_url"`
}

// InviteService emails the public evaluation link to people the owner picks.
type InviteService interface {
	Enabled() bool
	SendInvites(ctx context.Context, userID, speechID uuid.UUID, in InviteInput) (*InviteResult, error)
}

type inviteService struct {
	log         *logger.Logger
	mailer      sendgrid.Mailer
	speeches    SpeechService
	cards       ShareCardService
	profileRepo repos.ProfileRepo
}

// NewInviteService accepts a nil mailer; SendInvites then reports unavailable.
func NewInviteService(log *logger.Logger, mailer sendgrid.Mailer, speeches SpeechService, cards ShareCardService, profileRepo repos.ProfileRepo) InviteService {
	return &inviteService{
		log:         log.With("service", "InviteService"),
		mailer:      mailer,
		speeches:    speeches,
		cards:       cards,
		profileRepo: profileRepo,
	}
}

func (is *inviteService) Enabled() bool { return is.mailer != nil }

func parseRecipients(raw []string) ([]sendgrid.Address, error) {
	seen := map[string]bool{}
	out := make([]sendgrid.Address, 0, len(raw))
	var bad []string
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		addr, err := mail.ParseAddress(r)
		if err != nil {
			bad = append(bad, r)
			continue
		}
		key := strings.ToLower(addr.Address)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, sendgrid.Address{Email: addr.Address, Name: addr.Name})
	}
	if len(bad) > 0 {
		return nil, fmt.Errorf("invalid email address %q: %w", bad[0], types.ErrInvalidArgument)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one recipient required: %w", types.ErrInvalidArgument)
	}
	if len(out) > MaxInviteRecipients {
		return nil, fmt.Errorf("at most %d recipients: %w", MaxInviteRecipients, types.ErrInvalidArgument)
	}
	return out, nil
}

func (is *inviteService) SendInvites(ctx context.Context, userID, speechID uuid.UUID, in InviteInput) (*InviteResult, error) {
	if is.mailer == nil {
		return nil, fmt.Errorf("email delivery not configured: %w", types.ErrUnavailable)
	}
	recipients, err := parseRecipients(in.Emails)
	if err != nil {
		return nil, err
	}
	message := strings.TrimSpace(in.Message)
	if len([]rune(message)) > maxInviteMessageRunes {
		return nil, fmt.Errorf("message exceeds %d characters: %w", maxInviteMessageRunes, types.ErrInvalidArgument)
	}

	sp, err := is.speeches.GetOwnedSpeech(ctx, userID, speechID)
	if err != nil {
		return nil, err
	}
	// Reuse the live link so earlier invitations keep working.
	shareURL := ""
	if sp.IsPublic && sp.ShareToken != nil {
		shareURL = is.speeches.ShareURL(*sp.ShareToken)
	} else {
		link, err := is.speeches.GenerateShareToken(ctx, userID, speechID)
		if err != nil {
			return nil, err
		}
		shareURL = link.URL
	}

	sender := "A speaker"
	var replyTo *sendgrid.Address
	if p, err := is.profileRepo.GetByID(dbctx.Context{Ctx: ctx}, userID); err == nil && p != nil {
		if strings.TrimSpace(p.FullName) != "" {
			sender = strings.TrimSpace(p.FullName)
		}
		if p.Email != "" {
			replyTo = &sendgrid.Address{Email: p.Email, Name: p.FullName}
		}
	}

	msg := sendgrid.Message{
		ReplyTo:    replyTo,
		Recipients: recipients,
		Subject:    fmt.Sprintf("%s would like your feedback on \"%s\"", sender, sp.Title),
		Text:       inviteText(sender, sp.Title, message, shareURL),
		HTML:       inviteHTML(sender, sp.Title, message, shareURL, is.cards != nil),
		Category:   "speech_invite",
		Args:       map[string]string{"speech_id": sp.ID.String()},
	}
	if is.cards != nil {
		card, err := is.cards.RenderCard(sp, shareURL)
		if err != nil {
			is.log.Warn("Share card render failed, sending without it", "speech_id", sp.ID, "error", err)
			msg.HTML = inviteHTML(sender, sp.Title, message, shareURL, false)
		} else {
			msg.Inline = []sendgrid.InlineImage{{ContentID: shareCardContentID, Filename: "evaluate.png", PNG: card}}
		}
	}

	res, err := is.mailer.Send(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("send invites: %w", err)
	}
	is.log.Info("Evaluation invites sent", "speech_id", sp.ID, "recipients", len(recipients), "message_id", res.MessageID)
	return &InviteResult{Sent: len(recipients), ShareURL: shareURL}, nil
}

func inviteText(sender, title, message, url string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is practicing a speech, \"%s\", and would value your feedback.\n\n", sender, title)
	if message != "" {
		b.WriteString(message)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Open the evaluation form: %s\n\nIt takes about two minutes. You can submit as \"Anonymous\".\n", url)
	return b.String()
}

func inviteHTML(sender, title, message, url string, withCard bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>%s is practicing a speech, <strong>%s</strong>, and would value your feedback.</p>",
		html.EscapeString(sender), html.EscapeString(title))
	if message != "" {
		fmt.Fprintf(&b, "<blockquote>%s</blockquote>", strings.ReplaceAll(html.EscapeString(message), "\n", "<br>"))
	}
	fmt.Fprintf(&b, `<p><a href="%s">Open the evaluation form</a></p>`, html.EscapeString(url))
	if withCard {
		fmt.Fprintf(&b, `<p><img src="cid:%s" alt="QR code for the evaluation form" width="400"></p>`, shareCardContentID)
	}
	b.WriteString(`<p>It takes about two minutes. You can submit as "Anonymous".</p>`)
	return b.String()
}
