package image

// Image is a decoded 8-bit RGB raster stored row-major, three bytes per pixel.
// Values are treated as immutable once built; Resize returns a new Image.
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}

// At returns the RGB triple at (x, y).
func (img *Image) At(x, y int) (r, g, b uint8) {
	i := (y*img.Width + x) * 3
	return img.Pix[i], img.Pix[i+1], img.Pix[i+2]
}

// PixelCount is Width*Height.
func (img *Image) PixelCount() int {
	return img.Width * img.Height
}

// Empty reports a zero-dimension raster.
func (img *Image) Empty() bool {
	return img == nil || img.Width <= 0 || img.Height <= 0 || len(img.Pix) < img.Width*img.Height*3
}

// ValidationResult captures the outcome of upload validation.
type ValidationResult struct {
	IsValid      bool
	Format       string
	Width        int
	Height       int
	FileSize     int64
	Error        error
	SecurityRisk string
}
