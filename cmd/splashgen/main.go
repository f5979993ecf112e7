// Command splashgen renders a PNG image or a short text banner into the
// raw pixel format the boot contract's framebuffer expects: a flat
// byte blob of height rows of stride bytes, 4 bytes per pixel (BGRA,
// matching the little-endian 32-bit-per-pixel linear framebuffer most
// UEFI GOP modes hand back). No teacher file does anything like this —
// biscuit has no framebuffer — so this is grounded on the Mazarin
// example's mazboot package, the pack's other user of
// github.com/fogleman/gg for pre-boot pixel-buffer generation.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/fogleman/gg"
)

func main() {
	width := flag.Int("width", 1024, "framebuffer width in pixels")
	height := flag.Int("height", 768, "framebuffer height in pixels")
	text := flag.String("text", "", "render this text centered on a black background")
	source := flag.String("png", "", "render this PNG instead of text, scaled to fit")
	out := flag.String("out", "splash.bin", "output raw pixel blob path")
	flag.Parse()

	var img image.Image
	var err error
	if *source != "" {
		img, err = renderPNG(*source, *width, *height)
	} else {
		img, err = renderText(*text, *width, *height)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := writeBlob(*out, img, *width, *height); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func renderText(text string, width, height int) (image.Image, error) {
	dc := gg.NewContext(width, height)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(text, float64(width)/2, float64(height)/2, 0.5, 0.5)
	return dc.Image(), nil
}

func renderPNG(path string, width, height int) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	src, err := png.Decode(f)
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	sb := src.Bounds()
	scale := float64(width) / float64(sb.Dx())
	if alt := float64(height) / float64(sb.Dy()); alt < scale {
		scale = alt
	}
	dc.Scale(scale, scale)
	dc.DrawImage(src, 0, 0)
	return dc.Image(), nil
}

// writeBlob encodes img as height rows of stride=width*4 bytes, BGRA8888,
// matching the kernel.BootInfo framebuffer tuple (Width, Height, Stride,
// BytesPerPixel=4).
func writeBlob(path string, img image.Image, width, height int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	row := make([]byte, width*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			off := x * 4
			row[off+0] = byte(b >> 8)
			row[off+1] = byte(g >> 8)
			row[off+2] = byte(r >> 8)
			row[off+3] = byte(a >> 8)
		}
		if _, err := f.Write(row); err != nil {
			return err
		}
	}
	return nil
}
