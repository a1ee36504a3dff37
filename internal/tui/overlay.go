package tui

import (
	"strings"

	"github.com/raphaelgruber/epiderma/internal/models"
)

const (
	blankCell  = '·'
	minOverlay = 4
)

type cell struct {
	r   rune
	det int // index into detections, -1 for background
}

// canvas is a character grid standing in for the analyzed photo. Boxes are
// drawn in detection order, so later detections overwrite earlier ones where
// they overlap.
type canvas struct {
	width, height int
	cells         [][]cell
}

func newCanvas(width, height int) canvas {
	cells := make([][]cell, height)
	for y := range cells {
		row := make([]cell, width)
		for x := range row {
			row[x] = cell{r: blankCell, det: -1}
		}
		cells[y] = row
	}
	return canvas{width: width, height: height, cells: cells}
}

// drawDetections renders every valid detection box onto a fresh canvas.
func drawDetections(dets []models.Detection, width, height int) canvas {
	c := newCanvas(width, height)
	if width <= 0 || height <= 0 {
		return c
	}
	for i, d := range dets {
		if !d.Box.Valid() {
			continue
		}
		c.drawBox(i, d.Box)
	}
	return c
}

func (c canvas) set(y, x int, r rune, det int) {
	c.cells[y][x] = cell{r: r, det: det}
}

func (c canvas) drawBox(det int, b models.BoundingBox) {
	top, left, bottom, right := b.Scale(c.width, c.height)

	for x := left; x <= right; x++ {
		c.set(top, x, '─', det)
		c.set(bottom, x, '─', det)
	}
	for y := top; y <= bottom; y++ {
		c.set(y, left, '│', det)
		c.set(y, right, '│', det)
	}
	if top != bottom && left != right {
		c.set(top, right, '┐', det)
		c.set(bottom, left, '└', det)
		c.set(bottom, right, '┘', det)
	}

	// Number the box so it can be matched against the detections list.
	c.set(top, left, marker(det), det)
}

func marker(det int) rune {
	if det < 9 {
		return rune('1' + det)
	}
	return '■'
}

// String renders the canvas without colors.
func (c canvas) String() string {
	var sb strings.Builder
	for y, row := range c.cells {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for _, cl := range row {
			sb.WriteRune(cl.r)
		}
	}
	return sb.String()
}

// Render colors each box by its lesion label.
func (c canvas) Render(theme Theme, dets []models.Detection) string {
	blank := theme.mutedStyle()
	var sb strings.Builder
	for y, row := range c.cells {
		if y > 0 {
			sb.WriteByte('\n')
		}
		// Style runs of cells that belong to the same detection together.
		for start := 0; start < len(row); {
			end := start
			for end < len(row) && row[end].det == row[start].det {
				end++
			}
			var run strings.Builder
			for _, cl := range row[start:end] {
				run.WriteRune(cl.r)
			}
			style := blank
			if d := row[start].det; d >= 0 && d < len(dets) {
				style = style.Foreground(theme.LabelColor(dets[d].Label)).Bold(true)
			}
			sb.WriteString(style.Render(run.String()))
			start = end
		}
	}
	return sb.String()
}

// overlaySize fits the image aspect ratio into width columns, treating a
// terminal cell as twice as tall as it is wide. The height is zero when
// fewer than minOverlay rows are available.
func overlaySize(img *models.ImageRef, width, maxHeight int) (int, int) {
	if maxHeight < minOverlay {
		return width, 0
	}
	if width < 1 {
		width = 1
	}
	height := width / 2
	if img != nil && img.Width > 0 && img.Height > 0 {
		height = width * img.Height / img.Width / 2
	}
	if height < minOverlay {
		height = minOverlay
	}
	if height > maxHeight {
		height = maxHeight
	}
	return width, height
}
