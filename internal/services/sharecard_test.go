package services

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/speakwell-backend/internal/data/repos/testutil"
	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/platform/localmedia"
)

func TestShareCardRendersPNG(t *testing.T) {
	log := testutil.Logger(t)
	bucket, err := localmedia.NewDiskBucket(log, t.TempDir(), "http://media.test")
	if err != nil {
		t.Fatalf("NewDiskBucket: %v", err)
	}
	cards, err := NewShareCardService(log, bucket)
	if err != nil {
		t.Fatalf("NewShareCardService: %v", err)
	}
	url := "https://speak.test/evaluate/abc"

	qr, err := cards.QRCode(url, 0)
	if err != nil {
		t.Fatalf("QRCode: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(qr))
	if err != nil {
		t.Fatalf("QRCode: not a png: %v", err)
	}
	if w := img.Bounds().Dx(); w != DefaultQRSize {
		t.Fatalf("QRCode: width=%d want %d", w, DefaultQRSize)
	}
	if _, err := cards.QRCode("  ", 100); err == nil {
		t.Fatalf("QRCode(empty): expected error")
	}

	sp := &types.Speech{
		ID:    uuid.New(),
		Title: "Intro Talk",
		Skills: []types.SpeechSkill{
			{Skill: &types.Skill{Name: "Confidence"}},
			{Skill: &types.Skill{Name: "Pace"}},
		},
	}
	card, err := cards.RenderCard(sp, url)
	if err != nil {
		t.Fatalf("RenderCard: %v", err)
	}
	cardImg, err := png.Decode(bytes.NewReader(card))
	if err != nil {
		t.Fatalf("RenderCard: not a png: %v", err)
	}
	if b := cardImg.Bounds(); b.Dx() != shareCardWidth || b.Dy() != shareCardHeight {
		t.Fatalf("RenderCard: bounds=%v", b)
	}

	published, err := cards.PublishCard(testContext(), sp, url)
	if err != nil {
		t.Fatalf("PublishCard: %v", err)
	}
	if !strings.HasSuffix(published, "/sharecard/share_card/"+sp.ID.String()+".png") {
		t.Fatalf("PublishCard: url=%q", published)
	}
}
