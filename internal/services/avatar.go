package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"

	"github.com/carefully-app/carefully-backend/internal/logger"
	"github.com/carefully-app/carefully-backend/internal/types"
	"github.com/carefully-app/carefully-backend/internal/utils"
)

// AvatarService renders profile avatars: generated initials on a colored
// circle, or an uploaded photo cropped and resized. Files land under the
// local media dir and are served at /media.
type AvatarService interface {
	CreateUserAvatar(ctx context.Context, user *types.User) error
	CreateUserAvatarFromImage(ctx context.Context, user *types.User, raw []byte) error
}

type avatarService struct {
	log      *logger.Logger
	mediaDir string
	baseURL  string
	bgColors []color.NRGBA
	fontFace font.Face
}

var defaultAvatarPalette = []color.NRGBA{
	{R: 0x4C, G: 0x7E, B: 0xF3, A: 0xFF},
	{R: 0x2E, G: 0xB8, B: 0x72, A: 0xFF},
	{R: 0xE2, G: 0x6D, B: 0x5A, A: 0xFF},
	{R: 0x8E, G: 0x5B, B: 0xD9, A: 0xFF},
	{R: 0xE5, G: 0x9E, B: 0x2C, A: 0xFF},
	{R: 0x2A, G: 0xA8, B: 0xB8, A: 0xFF},
}

func NewAvatarService(log *logger.Logger) (AvatarService, error) {
	serviceLog := log.With("service", "AvatarService")

	mediaDir := utils.GetEnv("MEDIA_DIR", "media", log)
	if err := os.MkdirAll(filepath.Join(mediaDir, "user_avatar"), 0o755); err != nil {
		return nil, fmt.Errorf("could not create media dir: %w", err)
	}
	baseURL := utils.GetEnv("MEDIA_BASE_URL", "/media", log)

	fontPath := os.Getenv("AVATAR_FONT")
	if strings.TrimSpace(fontPath) == "" {
		return nil, fmt.Errorf("Env var AVATAR_FONT is empty")
	}
	serviceLog.Info("Loading avatar font", "font", fontPath)

	face, err := loadFontFace(fontPath, 206)
	if err != nil {
		return nil, fmt.Errorf("could not load avatar font: %w", err)
	}

	return &avatarService{
		log:      serviceLog,
		mediaDir: mediaDir,
		baseURL:  strings.TrimRight(baseURL, "/"),
		bgColors: defaultAvatarPalette,
		fontFace: face,
	}, nil
}

func (as *avatarService) CreateUserAvatar(ctx context.Context, user *types.User) error {
	if user == nil {
		return fmt.Errorf("user required")
	}
	as.ensureUserAvatarColor(user)

	buf, err := as.renderInitialsAvatar(user)
	if err != nil {
		return err
	}
	return as.storeAvatar(user, buf.Bytes())
}

func (as *avatarService) CreateUserAvatarFromImage(ctx context.Context, user *types.User, raw []byte) error {
	if user == nil {
		return fmt.Errorf("user required")
	}

	processed, err := processUploadedAvatar(raw, 512)
	if err != nil {
		return err
	}
	return as.storeAvatar(user, processed.Bytes())
}

// storeAvatar writes a versioned key so stale cached objects are never served,
// then best-effort removes the previous file.
func (as *avatarService) storeAvatar(user *types.User, png []byte) error {
	oldKey := strings.TrimSpace(user.AvatarMediaKey)

	newKey := fmt.Sprintf("user_avatar/%s_%d.png", user.ID.String(), time.Now().UnixNano())
	path := filepath.Join(as.mediaDir, filepath.FromSlash(newKey))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("failed to write avatar file: %w", err)
	}

	user.AvatarMediaKey = newKey
	user.AvatarURL = as.baseURL + "/" + newKey

	if oldKey != "" && oldKey != newKey {
		if err := os.Remove(filepath.Join(as.mediaDir, filepath.FromSlash(oldKey))); err != nil && !os.IsNotExist(err) {
			as.log.Warn("failed to delete old avatar (ignored)", "oldKey", oldKey, "error", err)
		}
	}
	return nil
}

func (as *avatarService) renderInitialsAvatar(user *types.User) (bytes.Buffer, error) {
	const size = 512
	var buf bytes.Buffer

	dc := gg.NewContext(size, size)

	dc.DrawCircle(float64(size)/2, float64(size)/2, float64(size)/2)
	dc.Clip()

	dc.SetColor(as.pickColor(user.AvatarColor))
	dc.DrawRectangle(0, 0, float64(size), float64(size))
	dc.Fill()

	initials := computeInitials(user.FirstName, user.LastName)

	dc.SetFontFace(as.fontFace)
	tw, th := dc.MeasureString(initials)
	cx, cy := float64(size)/2, float64(size)/2

	dc.SetColor(color.White)
	dc.DrawString(initials, cx-(tw/2), cy+(th/2)-10)

	if err := dc.EncodePNG(&buf); err != nil {
		return buf, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf, nil
}

func processUploadedAvatar(raw []byte, size int) (bytes.Buffer, error) {
	var out bytes.Buffer

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return out, fmt.Errorf("decode image: %w", err)
	}

	// Center-crop to square
	b := img.Bounds()
	w := b.Dx()
	h := b.Dy()
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

func (as *avatarService) ensureUserAvatarColor(user *types.User) {
	if strings.TrimSpace(user.AvatarColor) != "" {
		return
	}
	pick := as.bgColors[rand.Intn(len(as.bgColors))]
	user.AvatarColor = nrgbaToHex(pick)
}

func (as *avatarService) pickColor(hexStr string) color.NRGBA {
	if c, ok := parseHexNRGBA(hexStr); ok {
		return c
	}
	return as.bgColors[rand.Intn(len(as.bgColors))]
}

func computeInitials(first, last string) string {
	var b strings.Builder
	if first = strings.TrimSpace(first); first != "" {
		r, _ := utf8.DecodeRuneInString(first)
		b.WriteRune(unicode.ToUpper(r))
	}
	if last = strings.TrimSpace(last); last != "" {
		r, _ := utf8.DecodeRuneInString(last)
		b.WriteRune(unicode.ToUpper(r))
	}
	if b.Len() == 0 {
		return "?"
	}
	return b.String()
}

func nrgbaToHex(c color.NRGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

func parseHexNRGBA(s string) (color.NRGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.NRGBA{}, false
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: r, G: g, B: b, A: 0xFF}, true
}

func loadFontFace(path string, points float64) (font.Face, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	parsed, err := truetype.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return truetype.NewFace(parsed, &truetype.Options{Size: points}), nil
}
