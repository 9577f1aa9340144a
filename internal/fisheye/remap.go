package fisheye

import (
	"fmt"
	"runtime"
	"sync"
)

// sentinelR, sentinelG, sentinelB is the designated "no coverage" colour
// written for undefined map entries. Opaque black keeps the rgb24 pipe
// format free of an alpha plane.
const (
	sentinelR = 0x00
	sentinelG = 0x00
	sentinelB = 0x00
)

// Remapper applies a precomputed PixelMap to decoded fisheye frames.
// It is stateless per frame and safe for concurrent use across frames.
type Remapper struct {
	workers int
}

// NewRemapper returns a remapper that splits each frame across the given
// number of row-band workers. workers <= 0 selects GOMAXPROCS.
func NewRemapper(workers int) *Remapper {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Remapper{workers: workers}
}

// Remap samples src through pm into dst. Every defined output pixel is
// bilinearly interpolated from the four nearest source pixels with border
// clamp semantics; undefined pixels receive the no-coverage sentinel, so
// no dst byte is ever left stale. dst must match the map's output
// resolution and src its source resolution. No per-pixel allocation.
func (r *Remapper) Remap(pm *PixelMap, src, dst *Frame) error {
	if src.Width != pm.SrcWidth || src.Height != pm.SrcHeight {
		return fmt.Errorf("remap: source frame %dx%d does not match map source %dx%d",
			src.Width, src.Height, pm.SrcWidth, pm.SrcHeight)
	}
	if dst.Width != pm.Width || dst.Height != pm.Height {
		return fmt.Errorf("remap: output frame %dx%d does not match map %dx%d",
			dst.Width, dst.Height, pm.Width, pm.Height)
	}
	if err := src.Validate(); err != nil {
		return fmt.Errorf("remap: %w", err)
	}
	if err := dst.Validate(); err != nil {
		return fmt.Errorf("remap: %w", err)
	}

	dst.Index = src.Index

	workers := r.workers
	if workers > pm.Height {
		workers = pm.Height
	}

	var wg sync.WaitGroup
	rowsPer := (pm.Height + workers - 1) / workers
	for w := 0; w < workers; w++ {
		y0 := w * rowsPer
		y1 := y0 + rowsPer
		if y1 > pm.Height {
			y1 = pm.Height
		}
		if y0 >= y1 {
			break
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			remapRows(pm, src, dst, y0, y1)
		}(y0, y1)
	}
	wg.Wait()
	return nil
}

// remapRows fills dst rows [y0, y1).
func remapRows(pm *PixelMap, src, dst *Frame, y0, y1 int) {
	maxX := pm.SrcWidth - 1
	maxY := pm.SrcHeight - 1

	for v := y0; v < y1; v++ {
		entry := pm.Idx(0, v)
		out := dst.Offset(0, v)
		for u := 0; u < pm.Width; u++ {
			e := pm.Entries[entry]
			entry++

			if !e.Defined() {
				dst.Pix[out+0] = sentinelR
				dst.Pix[out+1] = sentinelG
				dst.Pix[out+2] = sentinelB
				out += BytesPerPixel
				continue
			}

			sx := float64(e.SrcX)
			sy := float64(e.SrcY)
			ix := int(sx)
			iy := int(sy)
			fx := sx - float64(ix)
			fy := sy - float64(iy)

			// Border clamp, never wrap.
			ix1 := ix + 1
			if ix1 > maxX {
				ix1 = maxX
			}
			iy1 := iy + 1
			if iy1 > maxY {
				iy1 = maxY
			}

			p00 := src.Offset(ix, iy)
			p10 := src.Offset(ix1, iy)
			p01 := src.Offset(ix, iy1)
			p11 := src.Offset(ix1, iy1)

			w00 := (1 - fx) * (1 - fy)
			w10 := fx * (1 - fy)
			w01 := (1 - fx) * fy
			w11 := fx * fy

			for c := 0; c < BytesPerPixel; c++ {
				val := w00*float64(src.Pix[p00+c]) +
					w10*float64(src.Pix[p10+c]) +
					w01*float64(src.Pix[p01+c]) +
					w11*float64(src.Pix[p11+c])
				dst.Pix[out+c] = byte(val + 0.5)
			}
			out += BytesPerPixel
		}
	}
}
