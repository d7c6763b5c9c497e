package image

import (
	stdimage "image"

	"golang.org/x/image/draw"
)

// ToStd exposes the raster as an opaque *image.RGBA.
func (img *Image) ToStd() *stdimage.RGBA {
	out := stdimage.NewRGBA(stdimage.Rect(0, 0, img.Width, img.Height))
	for p := 0; p < img.Width*img.Height; p++ {
		out.Pix[p*4] = img.Pix[p*3]
		out.Pix[p*4+1] = img.Pix[p*3+1]
		out.Pix[p*4+2] = img.Pix[p*3+2]
		out.Pix[p*4+3] = 0xFF
	}
	return out
}

// Resize scales to width x height with nearest-neighbour sampling, the default the
// models were trained with. The receiver is left untouched.
func (img *Image) Resize(width, height int) *Image {
	if img.Width == width && img.Height == height {
		cp := make([]uint8, len(img.Pix))
		copy(cp, img.Pix)
		return &Image{Width: width, Height: height, Pix: cp}
	}
	src := img.ToStd()
	dst := stdimage.NewRGBA(stdimage.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return FromStd(dst)
}

// Normalized returns HWC float32 values scaled into [0,1].
func (img *Image) Normalized() []float32 {
	out := make([]float32, len(img.Pix))
	for i, v := range img.Pix {
		out[i] = float32(v) / 255.0
	}
	return out
}
