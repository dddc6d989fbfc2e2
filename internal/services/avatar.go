package services

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"os"
	"strings"
	"time"
	"unicode"

	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/yungbote/speakwell-backend/internal/data/repos"
	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/platform/gcp"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

//go:embed assets/avatar_colors.json
var defaultAvatarColors []byte

const avatarSize = 512

// MaxAvatarUploadBytes bounds uploaded avatar images.
const MaxAvatarUploadBytes = 5 << 20

type AvatarService interface {
	PickColor() string
	GenerateInitialsAvatar(profile *types.Profile) (bytes.Buffer, error)
	// CreateAndUploadInitialsAvatar renders, uploads and persists a generated avatar.
	CreateAndUploadInitialsAvatar(ctx context.Context, profile *types.Profile) error
	// UploadAvatarImage crops raw to a circle, uploads and persists it.
	UploadAvatarImage(ctx context.Context, userID uuid.UUID, raw []byte) (*types.Profile, error)
}

type AvatarConfig struct {
	// ColorsPath and FontPath override the embedded palette and Go Regular.
	ColorsPath string
	FontPath   string
}

type avatarService struct {
	log           *logger.Logger
	profileRepo   repos.ProfileRepo
	bucketService gcp.BucketService
	notifier      Notifier

	bgColors   []color.NRGBA
	colorByHex map[string]color.NRGBA
	fontFace   font.Face
}

func NewAvatarService(log *logger.Logger, profileRepo repos.ProfileRepo, bucketService gcp.BucketService, notifier Notifier, cfg AvatarConfig) (AvatarService, error) {
	serviceLog := log.With("service", "AvatarService")
	if notifier == nil {
		notifier = NewNotifier(nil)
	}

	raw := defaultAvatarColors
	if p := strings.TrimSpace(cfg.ColorsPath); p != "" {
		serviceLog.Info("Loading avatar colors...", "path", p)
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read avatar colors: %w", err)
		}
		raw = b
	}
	bgColors, err := parseColors(raw)
	if err != nil {
		return nil, fmt.Errorf("could not load avatar colors: %w", err)
	}
	if len(bgColors) == 0 {
		return nil, fmt.Errorf("avatar colors list is empty")
	}
	colorByHex := make(map[string]color.NRGBA, len(bgColors))
	for _, c := range bgColors {
		colorByHex[nrgbaToHex(c)] = c
	}

	fontBytes := goregular.TTF
	if p := strings.TrimSpace(cfg.FontPath); p != "" {
		serviceLog.Info("Loading avatar font", "font", p)
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read font file: %w", err)
		}
		fontBytes = b
	}
	face, err := loadFontFace(fontBytes, 206)
	if err != nil {
		return nil, fmt.Errorf("could not load avatar font: %w", err)
	}

	return &avatarService{
		log:           serviceLog,
		profileRepo:   profileRepo,
		bucketService: bucketService,
		notifier:      notifier,
		bgColors:      bgColors,
		colorByHex:    colorByHex,
		fontFace:      face,
	}, nil
}

func (as *avatarService) PickColor() string {
	return nrgbaToHex(as.bgColors[rand.Intn(len(as.bgColors))])
}

func (as *avatarService) GenerateInitialsAvatar(profile *types.Profile) (bytes.Buffer, error) {
	var buf bytes.Buffer
	if profile == nil {
		return buf, fmt.Errorf("profile required")
	}
	as.ensureAvatarColor(profile)

	dc := gg.NewContext(avatarSize, avatarSize)
	dc.DrawCircle(avatarSize/2, avatarSize/2, avatarSize/2)
	dc.Clip()

	dc.SetColor(as.colorByHex[profile.AvatarColor])
	dc.DrawRectangle(0, 0, avatarSize, avatarSize)
	dc.Fill()

	initials := computeInitials(profile.FullName, profile.Email)
	dc.SetFontFace(as.fontFace)
	dc.SetColor(color.White)
	dc.DrawStringAnchored(initials, avatarSize/2, avatarSize/2, 0.5, 0.35)

	if err := dc.EncodePNG(&buf); err != nil {
		return buf, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf, nil
}

func (as *avatarService) CreateAndUploadInitialsAvatar(ctx context.Context, profile *types.Profile) error {
	buf, err := as.GenerateInitialsAvatar(profile)
	if err != nil {
		return err
	}
	if err := as.replaceAvatar(ctx, profile, buf.Bytes()); err != nil {
		return err
	}
	if err := as.profileRepo.UpdateFields(dbctx.Context{Ctx: ctx}, profile.ID, map[string]interface{}{
		"avatar_color": profile.AvatarColor,
	}); err != nil {
		return fmt.Errorf("persist avatar color: %w", err)
	}
	return nil
}

func (as *avatarService) UploadAvatarImage(ctx context.Context, userID uuid.UUID, raw []byte) (*types.Profile, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty image: %w", types.ErrInvalidArgument)
	}
	if len(raw) > MaxAvatarUploadBytes {
		return nil, fmt.Errorf("image larger than %d bytes: %w", MaxAvatarUploadBytes, types.ErrInvalidArgument)
	}
	profile, err := as.profileRepo.GetByID(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("profile %s: %w", userID, types.ErrNotFound)
	}
	processed, err := processUploadedAvatar(raw, avatarSize)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, types.ErrInvalidArgument)
	}
	if err := as.replaceAvatar(ctx, profile, processed.Bytes()); err != nil {
		return nil, err
	}
	return profile, nil
}

// replaceAvatar uploads under a versioned key, repoints the profile, then
// drops the previous object.
func (as *avatarService) replaceAvatar(ctx context.Context, profile *types.Profile, png []byte) error {
	oldKey := strings.TrimSpace(profile.AvatarBucketKey)
	newKey := fmt.Sprintf("user_avatar/%s/%d.png", profile.ID.String(), time.Now().UnixNano())

	dbc := dbctx.Context{Ctx: ctx}
	if err := as.bucketService.UploadFile(dbc, gcp.BucketCategoryAvatar, newKey, bytes.NewReader(png)); err != nil {
		return fmt.Errorf("failed to upload user avatar: %w", err)
	}
	url := as.bucketService.GetPublicURL(gcp.BucketCategoryAvatar, newKey)
	if err := as.profileRepo.UpdateAvatarFields(dbc, profile.ID, newKey, url); err != nil {
		return fmt.Errorf("persist avatar: %w", err)
	}
	profile.AvatarBucketKey = newKey
	profile.AvatarURL = url

	if oldKey != "" && oldKey != newKey {
		if err := as.bucketService.DeleteFile(dbc, gcp.BucketCategoryAvatar, oldKey); err != nil {
			as.log.Warn("failed to delete old avatar (ignored)", "oldKey", oldKey, "error", err)
		}
	}
	as.notifier.AvatarUpdated(profile.ID, url)
	return nil
}

func processUploadedAvatar(raw []byte, size int) (bytes.Buffer, error) {
	var out bytes.Buffer

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return out, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	side := w
	if h < w {
		side = h
	}
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2

	cropRect := image.Rect(0, 0, side, side)
	cropped := image.NewRGBA(cropRect)
	draw.Draw(cropped, cropRect, img, image.Point{X: x0, Y: y0}, draw.Src)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), cropped, cropped.Bounds(), draw.Over, nil)

	dc := gg.NewContext(size, size)
	dc.DrawCircle(float64(size)/2, float64(size)/2, float64(size)/2)
	dc.Clip()
	dc.DrawImage(dst, 0, 0)

	if err := dc.EncodePNG(&out); err != nil {
		return out, fmt.Errorf("encode png: %w", err)
	}
	return out, nil
}

func (as *avatarService) ensureAvatarColor(profile *types.Profile) {
	if n := normalizeHex(profile.AvatarColor); n != "" {
		if _, ok := as.colorByHex[n]; ok {
			profile.AvatarColor = n
			return
		}
	}
	profile.AvatarColor = as.PickColor()
}

func normalizeHex(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	if len(s) != 7 {
		return ""
	}
	if _, err := hex.DecodeString(s[1:]); err != nil {
		return ""
	}
	return s
}

func nrgbaToHex(c color.NRGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// computeInitials takes the first letter of the first and last words of the
// name, falling back to the email's first letter.
func computeInitials(fullName, email string) string {
	words := strings.Fields(fullName)
	first := func(s string) string {
		for _, r := range s {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return strings.ToUpper(string(r))
			}
		}
		return ""
	}
	switch len(words) {
	case 0:
		if f := first(email); f != "" {
			return f
		}
		return "?"
	case 1:
		if f := first(words[0]); f != "" {
			return f
		}
		return "?"
	default:
		out := first(words[0]) + first(words[len(words)-1])
		if out == "" {
			return "?"
		}
		return out
	}
}

func parseColors(raw []byte) ([]color.NRGBA, error) {
	var colors []color.NRGBA
	if err := json.Unmarshal(raw, &colors); err != nil {
		return nil, fmt.Errorf("json unmarshal error: %w", err)
	}
	return colors, nil
}

func loadFontFace(fontBytes []byte, size float64) (font.Face, error) {
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}
