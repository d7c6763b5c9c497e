package image

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"leaf-diagnosis-server/internal/platform/config"
	"leaf-diagnosis-server/internal/platform/logging"
)

// SecurityValidator checks uploaded bytes before they are fully decoded.
type SecurityValidator struct {
	config      config.SecurityConfig
	maxFileSize int64
	logger      *logging.Logger
}

func NewSecurityValidator(cfg config.SecurityConfig, maxFileSize int64, logger *logging.Logger) *SecurityValidator {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &SecurityValidator{
		config:      cfg,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

var imageSignatures = map[string][]byte{
	"jpeg": {0xFF, 0xD8},
	"jpg":  {0xFF, 0xD8},
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"gif":  {0x47, 0x49, 0x46, 0x38},
	"webp": {0x52, 0x49, 0x46, 0x46},
	"bmp":  {0x42, 0x4D},
}

// ValidateBytes checks size, declared format, and header-level decodability.
func (v *SecurityValidator) ValidateBytes(raw []byte, declaredFormat string) ValidationResult {
	result := ValidationResult{IsValid: false}
	declaredFormat = strings.ToLower(strings.TrimPrefix(declaredFormat, "."))

	if len(raw) == 0 {
		result.Error = fmt.Errorf("empty image payload")
		return result
	}

	if v.maxFileSize > 0 && int64(len(raw)) > v.maxFileSize {
		result.Error = fmt.Errorf("file size exceeds limit: %d bytes (max %d bytes)", len(raw), v.maxFileSize)
		result.SecurityRisk = "file too large"
		v.logger.WarnTag("HTTP", "oversized image: size=%d max_size=%d format=%s", len(raw), v.maxFileSize, declaredFormat)
		return result
	}

	if declaredFormat != "" && !v.isFormatAllowed(declaredFormat) {
		result.Error = fmt.Errorf("unsupported format: %s", declaredFormat)
		result.SecurityRisk = "unapproved format"
		return result
	}

	decoded := v.validateImageDecoding(raw, declaredFormat)
	if !decoded.IsValid {
		if declaredFormat != "" && !v.validateFileSignature(raw, declaredFormat) {
			v.logger.WarnTag("HTTP", "file signature mismatch: declared_format=%s actual_header=%x",
				declaredFormat, raw[:min(len(raw), 16)])
		}
		return decoded
	}

	decoded.FileSize = int64(len(raw))
	return decoded
}

func (v *SecurityValidator) isFormatAllowed(format string) bool {
	if len(v.config.AllowedFormats) == 0 || format == "" {
		return true
	}
	format = strings.ToLower(format)
	if format == "jpg" {
		format = "jpeg"
	}
	if format == "tif" {
		format = "tiff"
	}
	for _, allowed := range v.config.AllowedFormats {
		if strings.ToLower(allowed) == format {
			return true
		}
	}
	return false
}

func (v *SecurityValidator) validateFileSignature(raw []byte, format string) bool {
	signature, ok := imageSignatures[strings.ToLower(format)]
	if !ok || len(signature) == 0 {
		return true
	}
	if len(raw) < len(signature) {
		return false
	}
	return bytes.Equal(signature, raw[:len(signature)])
}

func (v *SecurityValidator) validateImageDecoding(raw []byte, format string) ValidationResult {
	result := ValidationResult{Format: format}

	cfg, actualFormat, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		result.Error = fmt.Errorf("decode image config: %w", err)
		result.SecurityRisk = "corrupted image data"
		return result
	}
	if actualFormat != "" {
		result.Format = actualFormat
	}
	if !v.isFormatAllowed(result.Format) {
		result.Error = fmt.Errorf("unsupported format: %s", result.Format)
		result.SecurityRisk = "unapproved format"
		return result
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		result.Error = fmt.Errorf("image has zero dimensions: %dx%d", cfg.Width, cfg.Height)
		return result
	}
	if v.config.MaxWidth > 0 && v.config.MaxHeight > 0 && (cfg.Width > v.config.MaxWidth || cfg.Height > v.config.MaxHeight) {
		result.Error = fmt.Errorf("dimensions exceed limit: %dx%d (max %dx%d)",
			cfg.Width, cfg.Height, v.config.MaxWidth, v.config.MaxHeight)
		result.SecurityRisk = "dimensions too large"
		return result
	}
	totalPixels := int64(cfg.Width) * int64(cfg.Height)
	if v.config.MaxPixels > 0 && totalPixels > v.config.MaxPixels {
		result.Error = fmt.Errorf("pixel count exceeds limit: %d (max %d)", totalPixels, v.config.MaxPixels)
		result.SecurityRisk = "pixel count too high"
		return result
	}

	result.IsValid = true
	result.Width = cfg.Width
	result.Height = cfg.Height
	return result
}
