package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// brailleBuf is a 2x4-per-cell micro-pixel canvas. Each cell keeps the
// 8-bit braille mask plus a color class; the last writer wins the color so
// the selection pass runs after the layer passes.
type brailleBuf struct {
	w, h int       // in cells
	m    [][]uint8 // per-cell braille mask
	c    [][]uint8 // per-cell color class (0 = unset, n = class n)
	t    [][]rune  // text overlay, wins over braille
	tc   [][]uint8 // text overlay color class
}

func newBrailleBuf(w, h int) *brailleBuf {
	m := make([][]uint8, h)
	c := make([][]uint8, h)
	t := make([][]rune, h)
	tc := make([][]uint8, h)
	for i := range m {
		m[i] = make([]uint8, w)
		c[i] = make([]uint8, w)
		t[i] = make([]rune, w)
		tc[i] = make([]uint8, w)
	}
	return &brailleBuf{w: w, h: h, m: m, c: c, t: t, tc: tc}
}

// setText writes a label into the overlay starting at cell (cx, cy).
func (b *brailleBuf) setText(cx, cy int, s string, color uint8) {
	if cy < 0 || cy >= b.h {
		return
	}
	for _, r := range s {
		if cx >= b.w {
			return
		}
		if cx >= 0 {
			b.t[cy][cx] = r
			b.tc[cy][cx] = color
		}
		cx++
	}
}

// setPixel sets a micro-pixel at micro coords (2x4 per cell).
func (b *brailleBuf) setPixel(mx, my int, color uint8) {
	if mx < 0 || my < 0 {
		return
	}
	cx, rx := mx/2, mx%2
	cy, ry := my/4, my%4
	if cy < 0 || cy >= b.h || cx < 0 || cx >= b.w {
		return
	}
	var bit uint8
	if rx == 0 {
		switch ry {
		case 0:
			bit = 0x01
		case 1:
			bit = 0x02
		case 2:
			bit = 0x04
		case 3:
			bit = 0x40
		}
	} else {
		switch ry {
		case 0:
			bit = 0x08
		case 1:
			bit = 0x10
		case 2:
			bit = 0x20
		case 3:
			bit = 0x80
		}
	}
	b.m[cy][cx] |= bit
	b.c[cy][cx] = color
}

// setThickPixel sets a pixel plus neighbors for stroke weights above the
// hairline threshold.
func (b *brailleBuf) setThickPixel(mx, my int, color uint8, weight int) {
	b.setPixel(mx, my, color)
	if weight >= 5 {
		b.setPixel(mx+1, my, color)
		b.setPixel(mx, my+1, color)
	}
	if weight >= 8 {
		b.setPixel(mx-1, my, color)
		b.setPixel(mx, my-1, color)
	}
}

// drawLineMicro draws a line on the microgrid using Bresenham.
func (b *brailleBuf) drawLineMicro(x0, y0, x1, y1 int, color uint8, weight int) {
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		b.setThickPixel(x0, y0, color, weight)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// drawDashedMicro draws a dashed line: the selection outline pattern.
func (b *brailleBuf) drawDashedMicro(x0, y0, x1, y1 int, color uint8, weight int) {
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	step := 0
	for {
		if step%6 < 4 { // 4 on, 2 off
			b.setThickPixel(x0, y0, color, weight)
		}
		step++
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// cellAt resolves one cell to its display rune and color class. The text
// overlay wins over braille; empty cells are spaces with class 0.
func (b *brailleBuf) cellAt(x, y int) (rune, uint8) {
	if b.t[y][x] != 0 {
		return b.t[y][x], b.tc[y][x]
	}
	if b.m[y][x] != 0 {
		return rune(0x2800 + int(b.m[y][x])), b.c[y][x]
	}
	return ' ', 0
}

// toLines renders the buffer to one string per row, coloring runs of equal
// color class with the matching style. Class 0 renders unstyled.
func (b *brailleBuf) toLines(styles []lipgloss.Style) []string {
	out := make([]string, b.h)
	for y := 0; y < b.h; y++ {
		var sb strings.Builder
		x := 0
		for x < b.w {
			ch, color := b.cellAt(x, y)
			run := []rune{ch}
			j := x + 1
			for j < b.w {
				ch2, c2 := b.cellAt(j, y)
				if c2 != color {
					break
				}
				run = append(run, ch2)
				j++
			}
			if int(color) > 0 && int(color) <= len(styles) {
				sb.WriteString(styles[color-1].Render(string(run)))
			} else {
				sb.WriteString(string(run))
			}
			x = j
		}
		out[y] = sb.String()
	}
	return out
}
