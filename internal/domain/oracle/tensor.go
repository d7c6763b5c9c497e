package oracle

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"leaf-diagnosis-server/internal/domain/image"
)

// Tensor is a dense row-major float32 array.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewImageTensor builds the [1,H,W,3] model input from an already resized image.
func NewImageTensor(img *image.Image) Tensor {
	return Tensor{
		Shape: []int{1, img.Height, img.Width, 3},
		Data:  img.Normalized(),
	}
}

// Rank is len(Shape).
func (t Tensor) Rank() int { return len(t.Shape) }

// Size is the product of Shape.
func (t Tensor) Size() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Validate checks that Data matches Shape.
func (t Tensor) Validate() error {
	for _, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("non-positive dimension in shape %v", t.Shape)
		}
	}
	if t.Size() != len(t.Data) {
		return fmt.Errorf("shape %v wants %d values, got %d", t.Shape, t.Size(), len(t.Data))
	}
	return nil
}

// DropBatch removes a leading batch dimension of 1, if present.
func (t Tensor) DropBatch() Tensor {
	if len(t.Shape) > 1 && t.Shape[0] == 1 {
		return Tensor{Shape: t.Shape[1:], Data: t.Data}
	}
	return t
}

// Scores returns the values of a class-score vector ([N] or [1,N]) as float64.
func (t Tensor) Scores() ([]float64, error) {
	v := t.DropBatch()
	if v.Rank() != 1 {
		return nil, fmt.Errorf("expected a score vector, got shape %v", t.Shape)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	out := make([]float64, len(v.Data))
	for i, x := range v.Data {
		out[i] = float64(x)
	}
	return out, nil
}

// ArgMax returns the index and value of the largest entry; the first wins on ties.
func ArgMax(values []float64) (int, float64) {
	if len(values) == 0 {
		return -1, 0
	}
	idx := floats.MaxIdx(values)
	return idx, values[idx]
}

// ChannelMeans averages an [H,W,C] tensor over its spatial extent, one mean per channel.
func ChannelMeans(t Tensor) ([]float64, error) {
	if t.Rank() != 3 {
		return nil, fmt.Errorf("expected [H,W,C], got shape %v", t.Shape)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	channels := t.Shape[2]
	pixels := t.Shape[0] * t.Shape[1]
	sums := make([]float64, channels)
	column := make([]float64, pixels)
	for c := 0; c < channels; c++ {
		for p := 0; p < pixels; p++ {
			column[p] = float64(t.Data[p*channels+c])
		}
		sums[c] = floats.Sum(column)
	}
	floats.Scale(1/float64(pixels), sums)
	return sums, nil
}
