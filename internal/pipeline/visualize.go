// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	boxColor   = color.RGBA{R: 0, G: 200, B: 80, A: 255}
	labelColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	stripColor = color.RGBA{A: 255}
)

const boxThickness = 3

// renderVis draws detection boxes and labels onto a copy of the image and
// writes it next to the upload as <stem>_vis.jpg. Returns the file name
// relative to the runs directory.
func (s *Service) renderVis(uploadName string, img image.Image, instances []InstanceResult) (string, error) {
	canvas := image.NewRGBA(img.Bounds())
	draw.Draw(canvas, canvas.Bounds(), img, img.Bounds().Min, draw.Src)

	for _, inst := range instances {
		box := image.Rect(inst.Bbox[0], inst.Bbox[1], inst.Bbox[2], inst.Bbox[3])
		drawBox(canvas, box)
		drawLabel(canvas, box, labelText(inst))
	}

	stem := strings.TrimSuffix(uploadName, filepath.Ext(uploadName))
	name := stem + "_vis.jpg"
	out, err := os.Create(filepath.Join(s.runsDir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create annotated image: %w", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, canvas, &jpeg.Options{Quality: 90}); err != nil {
		return "", fmt.Errorf("failed to encode annotated image: %w", err)
	}
	return name, nil
}

// labelText formats "class conf" plus the top product when one matched.
func labelText(inst InstanceResult) string {
	label := fmt.Sprintf("%s %.2f", inst.Class, inst.DetConf)
	if inst.Top1 != nil {
		label += " -> " + inst.Top1.SKUID
	}
	return label
}

func drawBox(canvas *image.RGBA, box image.Rectangle) {
	box = box.Intersect(canvas.Bounds())
	for t := 0; t < boxThickness; t++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			canvas.Set(x, box.Min.Y+t, boxColor)
			canvas.Set(x, box.Max.Y-1-t, boxColor)
		}
		for y := box.Min.Y; y < box.Max.Y; y++ {
			canvas.Set(box.Min.X+t, y, boxColor)
			canvas.Set(box.Max.X-1-t, y, boxColor)
		}
	}
}

// drawLabel paints the text on a black strip above the box, or inside its
// top edge when the box touches the top of the image.
func drawLabel(canvas *image.RGBA, box image.Rectangle, text string) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 8
	height := face.Metrics().Height.Ceil() + 4

	stripTop := box.Min.Y - height
	if stripTop < canvas.Bounds().Min.Y {
		stripTop = box.Min.Y
	}
	strip := image.Rect(box.Min.X, stripTop, box.Min.X+width, stripTop+height)
	draw.Draw(canvas, strip.Intersect(canvas.Bounds()), image.NewUniform(stripColor), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(labelColor),
		Face: face,
		Dot: fixed.P(
			strip.Min.X+4,
			strip.Min.Y+face.Metrics().Ascent.Ceil()+2,
		),
	}
	d.DrawString(text)
}
