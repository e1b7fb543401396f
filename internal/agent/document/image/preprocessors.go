package image

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Preprocessor 图像处理步骤
type Preprocessor interface {
	Process(img image.Image) (image.Image, error)
}

// 透明背景填充为白色
type FlattenProcessor struct{}

func NewFlattenProcessor() *FlattenProcessor {
	return &FlattenProcessor{}
}

func (p *FlattenProcessor) Process(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}
	return Flatten(img), nil
}

// 旋转处理器，角度为逆时针
type RotateProcessor struct {
	angle float64
}

func NewRotateProcessor(angle float64) *RotateProcessor {
	return &RotateProcessor{angle: angle}
}

func (p *RotateProcessor) Process(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}
	return Rotate(img, p.angle), nil
}

// 等比缩放到限定框内
type FitProcessor struct {
	maxWidth  int
	maxHeight int
}

func NewFitProcessor(maxWidth, maxHeight int) *FitProcessor {
	return &FitProcessor{maxWidth: maxWidth, maxHeight: maxHeight}
}

func (p *FitProcessor) Process(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}
	return ResizeBounded(img, p.maxWidth, p.maxHeight), nil
}

// Pipeline runs its steps in order.
type Pipeline []Preprocessor

func (p Pipeline) Process(img image.Image) (image.Image, error) {
	var err error
	for i, step := range p {
		img, err = step.Process(img)
		if err != nil {
			return nil, fmt.Errorf("preprocess step %d: %w", i, err)
		}
	}
	return img, nil
}

// Rotate turns img counter-clockwise by angle degrees. The canvas grows to
// hold the rotated content and the uncovered corners are white. A zero angle
// returns an unmodified copy.
func Rotate(img image.Image, angle float64) image.Image {
	if angle == 0 {
		return imaging.Clone(img)
	}
	return imaging.Rotate(img, angle, color.White)
}

// ResizeBounded shrinks img to fit within maxWidth x maxHeight keeping the
// aspect ratio. Images already inside the box come back as a copy.
func ResizeBounded(img image.Image, maxWidth, maxHeight int) image.Image {
	if maxWidth <= 0 || maxHeight <= 0 {
		return imaging.Clone(img)
	}
	return imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
}

// Process rotates first and bounds second, so the result respects the box
// even after rotation enlarged the canvas.
func Process(img image.Image, maxWidth, maxHeight int, angle float64) (image.Image, error) {
	return Pipeline{
		NewFlattenProcessor(),
		NewRotateProcessor(angle),
		NewFitProcessor(maxWidth, maxHeight),
	}.Process(img)
}
