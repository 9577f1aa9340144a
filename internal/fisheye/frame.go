package fisheye

import (
	"fmt"
	"image"
	"image/color"
)

// Frame is a packed 8-bit RGB raster with a logical stream index.
// Pix holds Width*Height*3 bytes in row-major order, matching the rgb24
// layout of the decode/encode pipes so frames cross the collaborator
// boundary without conversion.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
	Index  int64
}

// BytesPerPixel is the packed sample size of a Frame.
const BytesPerPixel = 3

// NewFrame allocates a zeroed frame of the given dimensions.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*BytesPerPixel),
	}
}

// ByteLen returns the expected length of Pix for the frame's dimensions.
func (f *Frame) ByteLen() int {
	return f.Width * f.Height * BytesPerPixel
}

// Offset returns the Pix offset of pixel (x, y).
func (f *Frame) Offset(x, y int) int {
	return (y*f.Width + x) * BytesPerPixel
}

// Validate checks that the raster is internally consistent.
func (f *Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame dimensions %dx%d", f.Width, f.Height)
	}
	if len(f.Pix) != f.ByteLen() {
		return fmt.Errorf("frame buffer length %d does not match %dx%d rgb24 (%d bytes)",
			len(f.Pix), f.Width, f.Height, f.ByteLen())
	}
	return nil
}

// ToImage copies the raster into an image.RGBA for the PNG/resize boundary.
func (f *Frame) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		src := f.Offset(0, y)
		dst := img.PixOffset(0, y)
		for x := 0; x < f.Width; x++ {
			img.Pix[dst+0] = f.Pix[src+0]
			img.Pix[dst+1] = f.Pix[src+1]
			img.Pix[dst+2] = f.Pix[src+2]
			img.Pix[dst+3] = 0xff
			src += BytesPerPixel
			dst += 4
		}
	}
	return img
}

// FromImage packs an image into the frame, which must already match the
// image bounds.
func (f *Frame) FromImage(img image.Image) error {
	b := img.Bounds()
	if b.Dx() != f.Width || b.Dy() != f.Height {
		return fmt.Errorf("image %dx%d does not fit frame %dx%d", b.Dx(), b.Dy(), f.Width, f.Height)
	}
	for y := 0; y < f.Height; y++ {
		off := f.Offset(0, y)
		for x := 0; x < f.Width; x++ {
			c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			f.Pix[off+0] = c.R
			f.Pix[off+1] = c.G
			f.Pix[off+2] = c.B
			off += BytesPerPixel
		}
	}
	return nil
}
