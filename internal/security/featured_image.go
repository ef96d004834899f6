package security

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"strings"

	_ "golang.org/x/image/webp"
)

// FeaturedImageValidator はアイキャッチ画像の値を検証する。
// 値はhttp(s)のURLか、デコード可能なbase64のdata URI画像でなければならない。
type FeaturedImageValidator struct {
	maxBytes int64
}

// NewFeaturedImageValidator はdata URI画像の最大バイト数を指定して生成する。
func NewFeaturedImageValidator(maxBytes int64) *FeaturedImageValidator {
	return &FeaturedImageValidator{maxBytes: maxBytes}
}

// Validate は値が利用可能なアイキャッチ画像かどうかを検証する。
func (v *FeaturedImageValidator) Validate(value string) error {
	if strings.HasPrefix(value, "data:") {
		return v.validateDataURI(value)
	}

	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid image URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("image URL must use http or https: %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("image URL has no host")
	}
	return nil
}

// validateDataURI は data:image/<type>;base64,<payload> 形式を検証し、
// 画像ヘッダをデコードできることを確認する。
func (v *FeaturedImageValidator) validateDataURI(value string) error {
	header, payload, ok := strings.Cut(strings.TrimPrefix(value, "data:"), ",")
	if !ok {
		return errors.New("data URI has no payload")
	}

	mediaType, encoding, _ := strings.Cut(header, ";")
	if !strings.HasPrefix(mediaType, "image/") {
		return fmt.Errorf("data URI is not an image: %q", mediaType)
	}
	if encoding != "base64" {
		return errors.New("data URI must be base64 encoded")
	}

	if v.maxBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(payload))) > v.maxBytes+2 {
		return fmt.Errorf("image exceeds %d bytes", v.maxBytes)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("invalid base64 payload: %w", err)
	}
	if v.maxBytes > 0 && int64(len(data)) > v.maxBytes {
		return fmt.Errorf("image exceeds %d bytes", v.maxBytes)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("image could not be decoded: %w", err)
	}
	if !mediaTypeMatches(mediaType, format) {
		return fmt.Errorf("data URI type %q does not match image format %q", mediaType, format)
	}
	return nil
}

func mediaTypeMatches(mediaType, format string) bool {
	subtype := strings.TrimPrefix(mediaType, "image/")
	if subtype == format {
		return true
	}
	return subtype == "jpg" && format == "jpeg"
}
