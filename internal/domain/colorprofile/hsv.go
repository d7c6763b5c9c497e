package colorprofile

import "math"

// HSV is one pixel in the 8-bit OpenCV convention: H in [0,180), S and V in [0,255].
type HSV struct {
	H, S, V uint8
}

// RGBToHSV converts one 8-bit RGB pixel, rounding each channel like an 8-bit OpenCV conversion.
func RGBToHSV(r, g, b uint8) HSV {
	rf, gf, bf := float64(r), float64(g), float64(b)
	maxC := math.Max(rf, math.Max(gf, bf))
	minC := math.Min(rf, math.Min(gf, bf))
	diff := maxC - minC

	var s float64
	if maxC > 0 {
		s = diff * 255.0 / maxC
	}

	var h float64
	switch {
	case diff == 0:
		h = 0
	case maxC == rf:
		h = 60 * (gf - bf) / diff
	case maxC == gf:
		h = 60 * ((bf-rf)/diff + 2)
	default:
		h = 60 * ((rf-gf)/diff + 4)
	}
	if h < 0 {
		h += 360
	}

	hq := int(math.Round(h / 2))
	if hq >= 180 {
		hq -= 180
	}

	return HSV{
		H: uint8(hq),
		S: uint8(math.Round(s)),
		V: uint8(maxC),
	}
}
