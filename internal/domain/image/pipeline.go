package image

import (
	"bytes"
	"context"
	"fmt"
	stdimage "image"
	"io"
	"os"

	"leaf-diagnosis-server/internal/platform/config"
	"leaf-diagnosis-server/internal/platform/errors"
	"leaf-diagnosis-server/internal/platform/logging"
)

const defaultMaxFileSize = 20 << 20

// Pipeline reads an upload under a size cap, validates it, and decodes it to RGB.
type Pipeline struct {
	validator   *SecurityValidator
	logger      *logging.Logger
	maxFileSize int64
}

type Options struct {
	Security    config.SecurityConfig
	MaxFileSize int64
	Logger      *logging.Logger
}

// Input describes a streaming image payload.
type Input struct {
	Reader         io.Reader
	DeclaredFormat string
	Source         string
}

func NewPipeline(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = defaultMaxFileSize
	}
	return &Pipeline{
		validator:   NewSecurityValidator(opts.Security, opts.MaxFileSize, opts.Logger),
		logger:      opts.Logger,
		maxFileSize: opts.MaxFileSize,
	}
}

// Process streams the input, validates it and returns the decoded raster.
func (p *Pipeline) Process(ctx context.Context, input Input) (*Image, ValidationResult, error) {
	if input.Reader == nil {
		return nil, ValidationResult{}, errors.New(errors.KindMissingInput, "image.process", "No file uploaded")
	}
	if err := ctx.Err(); err != nil {
		return nil, ValidationResult{}, err
	}

	limited := &io.LimitedReader{R: input.Reader, N: p.maxFileSize + 1}
	buf := bytes.NewBuffer(make([]byte, 0, 64*1024))
	if _, err := io.Copy(buf, limited); err != nil {
		return nil, ValidationResult{}, errors.Wrap(errors.KindInvalidImage, "image.process", "Could not read uploaded file", err)
	}
	if limited.N <= 0 {
		return nil, ValidationResult{}, errors.New(errors.KindInvalidImage, "image.process",
			fmt.Sprintf("Image exceeds maximum size of %d bytes", p.maxFileSize))
	}

	raw := buf.Bytes()
	validation := p.validator.ValidateBytes(raw, input.DeclaredFormat)
	if !validation.IsValid {
		p.logger.WarnTag("HTTP", "rejected upload source=%s risk=%s err=%v", input.Source, validation.SecurityRisk, validation.Error)
		return nil, validation, errors.Reclassify(errors.KindInvalidImage, "image.process", "Invalid image file", validation.Error)
	}

	img, err := Decode(raw)
	if err != nil {
		return nil, validation, err
	}
	return img, validation, nil
}

// ProcessFile opens path and runs it through Process.
func (p *Pipeline) ProcessFile(ctx context.Context, path, declaredFormat string) (*Image, ValidationResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ValidationResult{}, errors.Wrap(errors.KindInvalidImage, "image.process_file", "Could not open image file", err)
	}
	defer f.Close()
	return p.Process(ctx, Input{Reader: f, DeclaredFormat: declaredFormat, Source: path})
}

// Decode turns encoded bytes (jpeg, png, gif, webp, bmp, tiff) into an RGB Image.
func Decode(raw []byte) (*Image, error) {
	src, _, err := stdimage.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Reclassify(errors.KindInvalidImage, "image.decode", "Invalid image file", err)
	}
	img := FromStd(src)
	if img.Empty() {
		return nil, errors.New(errors.KindInvalidImage, "image.decode", "Image has zero dimensions")
	}
	return img, nil
}

// FromStd copies any image.Image into an RGB raster, dropping alpha.
func FromStd(src stdimage.Image) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	img := &Image{Width: w, Height: h, Pix: make([]uint8, w*h*3)}

	if rgba, ok := src.(*stdimage.RGBA); ok {
		for y := 0; y < h; y++ {
			row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
			for x := 0; x < w; x++ {
				i := (y*w + x) * 3
				img.Pix[i] = row[x*4]
				img.Pix[i+1] = row[x*4+1]
				img.Pix[i+2] = row[x*4+2]
			}
		}
		return img
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := (y*w + x) * 3
			img.Pix[i] = uint8(r >> 8)
			img.Pix[i+1] = uint8(g >> 8)
			img.Pix[i+2] = uint8(bl >> 8)
		}
	}
	return img
}
