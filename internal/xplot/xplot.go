// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

// Package xplot writes traces in the xplot double-double format consumed
// by the mtr family of congestion-control research tools: the same
// directive set (dot, plus, x, line) and decimation-by-color rule, with
// samples timestamped from a live sender's wall clock instead of a
// simulated logical clock.
package xplot

import (
	"bufio"
	"fmt"
	"os"
	"text/template"

	"github.com/ccwnd-lab/datagrump/internal/units"
)

const header = `double double
title
{{.Title}}
{{if .X.Label -}}
xlabel
{{.X.Label}}
{{end -}}
{{if .Y.Label -}}
ylabel
{{.Y.Label}}
{{end -}}
{{if .X.Units -}}
xunits
{{.X.Units}}
{{end -}}
{{if .Y.Units -}}
yunits
{{.Y.Units}}
{{end -}}
invisible 0 0
`

// Axis labels one plot axis.
type Axis struct {
	Label string
	Units string
}

// Symbology selects the plotted point's glyph.
type Symbology int

const (
	Dot Symbology = iota
	Plus
	Cross
)

// Color selects the plotted point's xplot color index.
type Color int

const (
	White Color = iota
	Green
	Red
	Blue
	Yellow
	Purple
	Orange
	Magenta
	Pink
)

// Plot is one open xplot trace file.
type Plot struct {
	Title string
	X     Axis
	Y     Axis

	// Decimation drops same-color, same-symbol points no more than this
	// interval after the last kept one, keeping long-running traces a
	// manageable size.
	Decimation units.Clock

	file   *os.File
	writer *bufio.Writer
	prior  map[int]units.Clock
}

// Open creates name and writes the xplot header.
func Open(name string, p Plot) (*Plot, error) {
	t, err := template.New("xplotHeader").Parse(header)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	p.file = f
	p.writer = bufio.NewWriter(f)
	p.prior = make(map[int]units.Clock)
	if err := t.Execute(p.writer, &p); err != nil {
		f.Close()
		return nil, err
	}
	return &p, nil
}

// Dot plots a small dot marker at (now, y).
func (p *Plot) Dot(now units.Clock, y any, color Color) {
	if p.decimate(now, Dot, color) {
		return
	}
	fmt.Fprintf(p.writer, "dot %d %v %d\n", now, y, color)
}

// Plus plots a plus marker at (now, y).
func (p *Plot) Plus(now units.Clock, y any, color Color) {
	if p.decimate(now, Plus, color) {
		return
	}
	fmt.Fprintf(p.writer, "+ %d %v %d\n", now, y, color)
}

// Cross plots an x marker at (now, y).
func (p *Plot) Cross(now units.Clock, y any, color Color) {
	if p.decimate(now, Cross, color) {
		return
	}
	fmt.Fprintf(p.writer, "x %d %v %d\n", now, y, color)
}

// Line draws a line segment between two points.
func (p *Plot) Line(x0, y0, x1, y1 any, color Color) {
	fmt.Fprintf(p.writer, "line %v %v %v %v %d\n", x0, y0, x1, y1, color)
}

// decimate reports whether a point of the given symbology and color
// arriving at now should be dropped for being too close to the last
// plotted point of that same symbology/color pair.
func (p *Plot) decimate(now units.Clock, sym Symbology, color Color) bool {
	key := int(sym)*16 + int(color)
	c, ok := p.prior[key]
	if !ok || now.Since(c) > p.Decimation {
		p.prior[key] = now
		return false
	}
	return true
}

// Close terminates the trace and flushes it to disk.
func (p *Plot) Close() error {
	fmt.Fprintf(p.writer, "go\n")
	if err := p.writer.Flush(); err != nil {
		return err
	}
	return p.file.Close()
}
