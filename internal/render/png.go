package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"tiny-explorers/internal/viewport"
)

// 文档注释：场景栅格化为 PNG
// 背景：无浏览器的客户端（工具、预览图）需要位图；阴影做了简化（偏移 2px 的半透明黑色，无模糊）。
// 约束：描边宽度按 f.Stroke×K 换算为屏幕像素，放大后轮廓粗细不变；标签使用固定字号的位图字体。
func RasterizePNG(w io.Writer, f Frame, now time.Time) error {
	iw, ih := int(math.Ceil(f.Width)), int(math.Ceil(f.Height))
	if iw <= 0 || ih <= 0 {
		return fmt.Errorf("rasterize: invalid size %gx%g", f.Width, f.Height)
	}
	img := image.NewRGBA(image.Rect(0, 0, iw, ih))
	draw.Draw(img, img.Bounds(), image.NewUniform(toNRGBA(OceanColor, 1)), image.Point{}, draw.Src)

	z := vector.NewRasterizer(iw, ih)
	t := f.Transform
	if t.K == 0 {
		t = viewport.Identity
	}
	if f.Scene != nil {
		shadow := image.NewUniform(color.NRGBA{A: 64})
		shifted := viewport.Transform{K: t.K, X: t.X + 2, Y: t.Y + 2}
		for _, sh := range f.Scene.Shapes {
			fillPath(z, img, sh.Path, shifted, shadow)
			fillPath(z, img, sh.Path, t, image.NewUniform(toNRGBA(sh.Color(now), 1)))
			strokePath(z, img, sh.Path, t, f.Stroke*t.K, image.NewUniform(toNRGBA(OutlineColor, 1)))
		}
		for _, sh := range f.Scene.Shapes {
			if sh.Label.Text == "" || sh.Label.Opacity <= 0 {
				continue
			}
			drawText(img, sh.Label.Text, t.Apply(sh.Label.Pos), toNRGBA(LabelColor, sh.Label.Opacity))
		}
	}
	if f.Status != "" {
		draw.Draw(img, img.Bounds(), image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 128}), image.Point{}, draw.Over)
		drawText(img, f.Status, orb.Point{f.Width / 2, f.Height / 2}, color.NRGBA{R: 14, G: 165, B: 233, A: 255})
	}
	return png.Encode(w, img)
}

func toNRGBA(c colorful.Color, opacity float64) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(math.Round(math.Max(0, math.Min(1, opacity)) * 255))}
}

// screenPath：内容坐标转为屏幕坐标（新切片，不改动场景中的路径）
func screenPath(mp orb.MultiPolygon, t viewport.Transform) orb.MultiPolygon {
	out := make(orb.MultiPolygon, 0, len(mp))
	for _, poly := range mp {
		sp := make(orb.Polygon, 0, len(poly))
		for _, ring := range poly {
			sr := make(orb.Ring, len(ring))
			for i, p := range ring {
				sr[i] = t.Apply(p)
			}
			sp = append(sp, sr)
		}
		out = append(out, sp)
	}
	return out
}

// canvas：画布外扩 pad 像素的裁剪框
func canvas(b image.Rectangle, pad float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{float64(b.Min.X) - pad, float64(b.Min.Y) - pad},
		Max: orb.Point{float64(b.Max.X) + pad, float64(b.Max.Y) + pad},
	}
}

// fillPath：按画布裁剪多边形后填充；裁剪保持边的斜率，放大后与点击判定的形状一致
func fillPath(z *vector.Rasterizer, dst draw.Image, mp orb.MultiPolygon, t viewport.Transform, src image.Image) {
	b := dst.Bounds()
	z.Reset(b.Dx(), b.Dy())
	drawn := false
	for _, poly := range clip.MultiPolygon(canvas(b, 1), screenPath(mp, t)) {
		for _, ring := range poly {
			if len(ring) < 3 {
				continue
			}
			for i, p := range ring {
				if i == 0 {
					z.MoveTo(float32(p[0]), float32(p[1]))
				} else {
					z.LineTo(float32(p[0]), float32(p[1]))
				}
			}
			z.ClosePath()
			drawn = true
		}
	}
	if drawn {
		z.Draw(dst, b, src, image.Point{})
	}
}

// strokePath：轮廓按线段裁剪（不会沿画布边缘多出描边），每条边画成宽 width 的四边形
func strokePath(z *vector.Rasterizer, dst draw.Image, mp orb.MultiPolygon, t viewport.Transform, width float64, src image.Image) {
	if width <= 0 {
		return
	}
	b := dst.Bounds()
	z.Reset(b.Dx(), b.Dy())
	half := width / 2
	box := canvas(b, half+1)
	drawn := false
	for _, poly := range screenPath(mp, t) {
		for _, ring := range poly {
			for _, ls := range clip.LineString(box, orb.LineString(ring)) {
				for i := 1; i < len(ls); i++ {
					a, c := ls[i-1], ls[i]
					dx, dy := c[0]-a[0], c[1]-a[1]
					l := math.Hypot(dx, dy)
					if l == 0 {
						continue
					}
					nx, ny := -dy/l*half, dx/l*half
					z.MoveTo(float32(a[0]+nx), float32(a[1]+ny))
					z.LineTo(float32(c[0]+nx), float32(c[1]+ny))
					z.LineTo(float32(c[0]-nx), float32(c[1]-ny))
					z.LineTo(float32(a[0]-nx), float32(a[1]-ny))
					z.ClosePath()
					drawn = true
				}
			}
		}
	}
	if drawn {
		z.Draw(dst, b, src, image.Point{})
	}
}

func drawText(dst draw.Image, s string, at orb.Point, c color.NRGBA) {
	face := basicfont.Face7x13
	adv := font.MeasureString(face, s)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(int(math.Round(at[0]))-adv.Round()/2, int(math.Round(at[1]))+4),
	}
	d.DrawString(s)
}
