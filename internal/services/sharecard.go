package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/fogleman/gg"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/platform/gcp"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

const (
	shareCardWidth  = 800
	shareCardHeight = 1000
	shareCardQRSize = 520
	DefaultQRSize   = 320
	maxQRSize       = 1024
)

var (
	shareCardBackground = color.NRGBA{R: 248, G: 250, B: 252, A: 255}
	shareCardInk        = color.NRGBA{R: 15, G: 23, B: 42, A: 255}
	shareCardMuted      = color.NRGBA{R: 100, G: 116, B: 139, A: 255}
	shareCardAccent     = color.NRGBA{R: 37, G: 99, B: 235, A: 255}
)

// ShareCardService renders the QR code evaluators scan to open a speech's
// public form.
type ShareCardService interface {
	QRCode(url string, size int) ([]byte, error)
	RenderCard(speech *types.Speech, url string) ([]byte, error)
	// PublishCard renders the card and stores it, returning its public URL.
	PublishCard(ctx context.Context, speech *types.Speech, url string) (string, error)
}

type shareCardService struct {
	log       *logger.Logger
	bucket    gcp.BucketService
	titleFace font.Face
	bodyFace  font.Face
	smallFace font.Face
}

func NewShareCardService(log *logger.Logger, bucket gcp.BucketService) (ShareCardService, error) {
	boldFace, err := loadFontFace(gobold.TTF, 44)
	if err != nil {
		return nil, fmt.Errorf("load share card title font: %w", err)
	}
	bodyFace, err := loadFontFace(goregular.TTF, 26)
	if err != nil {
		return nil, fmt.Errorf("load share card body font: %w", err)
	}
	smallFace, err := loadFontFace(goregular.TTF, 20)
	if err != nil {
		return nil, fmt.Errorf("load share card small font: %w", err)
	}
	return &shareCardService{
		log:       log.With("service", "ShareCardService"),
		bucket:    bucket,
		titleFace: boldFace,
		bodyFace:  bodyFace,
		smallFace: smallFace,
	}, nil
}

func (sc *shareCardService) QRCode(url string, size int) ([]byte, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("share url required: %w", types.ErrInvalidArgument)
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	if size > maxQRSize {
		size = maxQRSize
	}
	return qrcode.Encode(url, qrcode.Medium, size)
}

func (sc *shareCardService) RenderCard(speech *types.Speech, url string) ([]byte, error) {
	if speech == nil {
		return nil, fmt.Errorf("speech required: %w", types.ErrInvalidArgument)
	}
	qr, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	qr.DisableBorder = true
	qrImg := qr.Image(shareCardQRSize)

	dc := gg.NewContext(shareCardWidth, shareCardHeight)
	dc.SetColor(shareCardBackground)
	dc.Clear()

	dc.SetColor(shareCardAccent)
	dc.DrawRectangle(0, 0, shareCardWidth, 12)
	dc.Fill()

	margin := 60.0
	dc.SetFontFace(sc.smallFace)
	dc.SetColor(shareCardMuted)
	dc.DrawStringAnchored("Scan to evaluate this speech", shareCardWidth/2, 70, 0.5, 0.5)

	dc.SetFontFace(sc.titleFace)
	dc.SetColor(shareCardInk)
	dc.DrawStringWrapped(speech.Title, shareCardWidth/2, 110, 0.5, 0, shareCardWidth-2*margin, 1.3, gg.AlignCenter)

	qrTop := 250
	dc.SetColor(color.White)
	dc.DrawRoundedRectangle(float64(shareCardWidth-shareCardQRSize)/2-20, float64(qrTop)-20, shareCardQRSize+40, shareCardQRSize+40, 24)
	dc.Fill()
	dc.DrawImage(qrImg, (shareCardWidth-shareCardQRSize)/2, qrTop)

	names := make([]string, 0, len(speech.Skills))
	for _, ss := range speech.Skills {
		if ss.Skill != nil {
			names = append(names, ss.Skill.Name)
		}
	}
	if len(names) > 0 {
		dc.SetFontFace(sc.bodyFace)
		dc.SetColor(shareCardInk)
		dc.DrawStringWrapped("Rate: "+strings.Join(names, " · "), shareCardWidth/2, float64(qrTop+shareCardQRSize+50), 0.5, 0, shareCardWidth-2*margin, 1.4, gg.AlignCenter)
	}

	dc.SetFontFace(sc.smallFace)
	dc.SetColor(shareCardMuted)
	dc.DrawStringAnchored(url, shareCardWidth/2, shareCardHeight-50, 0.5, 0.5)

	return encodePNG(dc.Image())
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (sc *shareCardService) PublishCard(ctx context.Context, speech *types.Speech, url string) (string, error) {
	if sc.bucket == nil {
		return "", fmt.Errorf("media storage not configured: %w", types.ErrUnavailable)
	}
	card, err := sc.RenderCard(speech, url)
	if err != nil {
		return "", err
	}
	// One card per speech; a regenerated token overwrites it.
	key := fmt.Sprintf("share_card/%s.png", speech.ID)
	if err := sc.bucket.UploadFile(dbctx.Context{Ctx: ctx}, gcp.BucketCategoryShareCard, key, bytes.NewReader(card)); err != nil {
		return "", fmt.Errorf("upload share card: %w", err)
	}
	return sc.bucket.GetPublicURL(gcp.BucketCategoryShareCard, key), nil
}
