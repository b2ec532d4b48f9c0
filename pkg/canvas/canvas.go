// Package canvas реализует поверхность рисования Tela в памяти.
//
// Canvas хранит *image.RGBA и рисует круги и линии через растеризатор
// golang.org/x/image/vector. Canvas не потокобезопасен: его методы
// вызываются под блокировкой telakit.Dispatcher (см. Surface).
package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

// kappa контрольная точка кубической кривой Безье, приближающей четверть окружности.
const kappa = 0.5522847498

// Canvas поверхность в памяти, реализующая telakit.Backend.
type Canvas struct {
	img    *image.RGBA
	raster *vector.Rasterizer

	// dirty - были ли изменения с момента последнего показа.
	dirty bool
}

// New создает поверхность width×height, залитую чёрным.
func New(width, height int) *Canvas {
	c := &Canvas{
		img:    image.NewRGBA(image.Rect(0, 0, width, height)),
		raster: vector.NewRasterizer(0, 0),
	}
	c.Fill(color.RGBA{A: 0xff})
	return c
}

// Size возвращает размер поверхности в пикселях.
func (c *Canvas) Size() (width, height int) {
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

// Fill заливает всю поверхность цветом col.
func (c *Canvas) Fill(col color.RGBA) {
	draw.Draw(c.img, c.img.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
}

// FillCircle рисует закрашенный круг. Круг радиуса меньше половины пикселя
// вырождается в одну точку.
func (c *Canvas) FillCircle(cx, cy, radius float64, col color.RGBA) {
	if radius < 0.5 {
		c.img.SetRGBA(int(math.Floor(cx)), int(math.Floor(cy)), col)
		return
	}

	box := image.Rect(
		int(math.Floor(cx-radius)), int(math.Floor(cy-radius)),
		int(math.Ceil(cx+radius)), int(math.Ceil(cy+radius)),
	)
	c.fillPath(box, col, func(z *vector.Rasterizer, ox, oy float64) {
		x, y := float32(cx-ox), float32(cy-oy)
		r := float32(radius)
		k := float32(kappa) * r

		z.MoveTo(x+r, y)
		z.CubeTo(x+r, y+k, x+k, y+r, x, y+r)
		z.CubeTo(x-k, y+r, x-r, y+k, x-r, y)
		z.CubeTo(x-r, y-k, x-k, y-r, x, y-r)
		z.CubeTo(x+k, y-r, x+r, y-k, x+r, y)
		z.ClosePath()
	})
}

// Line рисует отрезок толщиной в один пиксель. Целые координаты
// соответствуют пикселям, поэтому линия проходит через их центры
// и закрашивает оба концевых пикселя.
func (c *Canvas) Line(x0, y0, x1, y1 float64, col color.RGBA) {
	x0, y0, x1, y1 = x0+0.5, y0+0.5, x1+0.5, y1+0.5
	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	// Направляющая и нормаль длиной в половину пикселя; концы продлеваются
	// на полпикселя, чтобы крайние пиксели закрашивались целиком
	ux, uy := dx/length*0.5, dy/length*0.5
	nx, ny := -uy, ux
	x0, y0, x1, y1 = x0-ux, y0-uy, x1+ux, y1+uy

	box := image.Rect(
		int(math.Floor(math.Min(x0, x1)-1)), int(math.Floor(math.Min(y0, y1)-1)),
		int(math.Ceil(math.Max(x0, x1)+1)), int(math.Ceil(math.Max(y0, y1)+1)),
	)
	c.fillPath(box, col, func(z *vector.Rasterizer, ox, oy float64) {
		z.MoveTo(float32(x0+nx-ox), float32(y0+ny-oy))
		z.LineTo(float32(x1+nx-ox), float32(y1+ny-oy))
		z.LineTo(float32(x1-nx-ox), float32(y1-ny-oy))
		z.LineTo(float32(x0-nx-ox), float32(y0-ny-oy))
		z.ClosePath()
	})
}

// Present отмечает поверхность как изменённую.
func (c *Canvas) Present() {
	c.dirty = true
}

// Image возвращает изображение поверхности. Его нельзя менять
// и читать вне блокировки Dispatcher.
func (c *Canvas) Image() *image.RGBA {
	return c.img
}

// CopyIfDirty копирует поверхность в dst, если она изменилась с прошлого копирования
// или force == true. Возвращает true, если копирование было.
func (c *Canvas) CopyIfDirty(dst draw.Image, force bool) bool {
	if !c.dirty && !force {
		return false
	}
	draw.Draw(dst, dst.Bounds(), c.img, c.img.Bounds().Min, draw.Src)
	c.dirty = false
	return true
}

// fillPath растеризует путь только в пределах box (пересечённого с поверхностью).
// path получает смещение box.Min, которое нужно вычесть из координат.
func (c *Canvas) fillPath(box image.Rectangle, col color.RGBA, path func(z *vector.Rasterizer, ox, oy float64)) {
	box = box.Intersect(c.img.Bounds())
	if box.Empty() {
		return
	}

	c.raster.Reset(box.Dx(), box.Dy())
	path(c.raster, float64(box.Min.X), float64(box.Min.Y))
	c.raster.Draw(c.img, box, image.NewUniform(col), image.Point{})
}
