package sim

import (
	"image/color"
	"io"

	"github.com/ByteArena/box2d"
	"github.com/fogleman/gg"
)

const (
	viewportW float64 = 600
	viewportH float64 = 400

	// pixels per world unit
	renderScale float64 = 100.0
)

var (
	skyShade    = color.RGBA{R: 32, G: 38, B: 60, A: 255}
	groundShade = color.RGBA{R: 120, G: 110, B: 90, A: 255}
	bodyShade   = color.RGBA{R: 200, G: 170, B: 80, A: 255}
	edgeShade   = color.RGBA{R: 245, G: 245, B: 245, A: 255}
)

// worldToPixel converts world coordinates to pixel coordinates. The
// camera follows the first body horizontally.
func (p *Planar) worldToPixel(x, y, camX float64) (float64, float64) {
	px := viewportW/2 + renderScale*(x-camX)
	py := viewportH - renderScale*y - viewportH/4
	return px, py
}

// Render draws the current scene as a PNG frame to w
func (p *Planar) Render(w io.Writer) error {
	dc := gg.NewContext(int(viewportW), int(viewportH))
	dc.SetColor(skyShade)
	dc.Clear()

	camX := 0.0
	if len(p.bodies) > 0 {
		camX = p.bodies[0].b2.GetPosition().X
	}

	// Ground geoms
	dc.SetColor(groundShade)
	dc.SetLineWidth(3.0)
	for fix := p.ground.GetFixtureList(); fix != nil; fix = fix.M_next {
		if sh, ok := fix.M_shape.(*box2d.B2EdgeShape); ok {
			x1, y1 := p.worldToPixel(sh.M_vertex1.X, sh.M_vertex1.Y, camX)
			x2, y2 := p.worldToPixel(sh.M_vertex2.X, sh.M_vertex2.Y, camX)
			dc.DrawLine(x1, y1, x2, y2)
		}
	}
	dc.Stroke()

	// Bodies
	for _, body := range p.bodies {
		for fix := body.b2.GetFixtureList(); fix != nil; fix = fix.M_next {
			shape, ok := fix.M_shape.(*box2d.B2PolygonShape)
			if !ok {
				continue
			}

			dc.ClearPath()
			trans := body.b2.M_xf
			for i := 0; i < shape.M_count; i++ {
				vertex := box2d.B2TransformVec2Mul(trans,
					shape.M_vertices[i])
				px, py := p.worldToPixel(vertex.X, vertex.Y, camX)
				dc.LineTo(px, py)
			}
			first := box2d.B2TransformVec2Mul(trans, shape.M_vertices[0])
			px, py := p.worldToPixel(first.X, first.Y, camX)
			dc.LineTo(px, py)

			dc.SetColor(bodyShade)
			dc.FillPreserve()
			dc.SetColor(edgeShade)
			dc.SetLineWidth(1.5)
			dc.Stroke()
		}
	}

	return dc.EncodePNG(w)
}
