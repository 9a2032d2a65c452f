package render

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"tiny-explorers/internal/viewport"
)

// Frame：一次输出所需的全部状态
type Frame struct {
	Width, Height float64
	Scene         *Scene
	Transform     viewport.Transform
	Stroke        float64
	// Status：非空时覆盖显示（加载中）
	Status string
}

const shadowFilter = `<filter id="drop-shadow" height="130%">` +
	`<feGaussianBlur in="SourceAlpha" stdDeviation="3"/>` +
	`<feOffset dx="2" dy="2" result="offsetblur"/>` +
	`<feComponentTransfer><feFuncA type="linear" slope="0.3"/></feComponentTransfer>` +
	`<feMerge><feMergeNode in="offsetblur"/><feMergeNode in="SourceGraphic"/></feMerge>` +
	`</filter>`

// WriteSVG：按 now 时刻的填充色输出 SVG；场景为空时只有背景与状态文字
func WriteSVG(w io.Writer, f Frame, now time.Time) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%g" height="%g" viewBox="0 0 %g %g">`,
		f.Width, f.Height, f.Width, f.Height)
	fmt.Fprintf(bw, `<defs>%s</defs>`, shadowFilter)
	fmt.Fprintf(bw, `<rect width="100%%" height="100%%" fill="%s"/>`, OceanColor.Hex())
	if f.Scene != nil {
		fmt.Fprintf(bw, `<g transform="%s">`, f.Transform)
		for _, sh := range f.Scene.Shapes {
			if len(sh.Path) == 0 {
				continue
			}
			fmt.Fprintf(bw, `<path d="%s" fill="%s" stroke="%s" stroke-width="%g" stroke-linejoin="round" filter="url(#drop-shadow)" data-index="%d" data-name="%s"/>`,
				pathData(sh.Path), sh.Color(now).Hex(), OutlineColor.Hex(), f.Stroke, sh.Index, escape(sh.Feature.Name))
		}
		for _, sh := range f.Scene.Shapes {
			l := sh.Label
			if l.Text == "" {
				continue
			}
			fmt.Fprintf(bw, `<text transform="translate(%.2f,%.2f)" text-anchor="middle" dy=".35em" font-family="Fredoka" font-size="10px" font-weight="600" fill="%s" opacity="%g" pointer-events="none">%s</text>`,
				l.Pos[0], l.Pos[1], LabelColor.Hex(), l.Opacity, escape(l.Text))
		}
		bw.WriteString(`</g>`)
	}
	if f.Status != "" {
		fmt.Fprintf(bw, `<rect width="100%%" height="100%%" fill="#ffffff" fill-opacity="0.5"/>`)
		fmt.Fprintf(bw, `<text x="%g" y="%g" text-anchor="middle" font-size="30px" font-weight="900" fill="#0ea5e9">%s</text>`,
			f.Width/2, f.Height/2, escape(f.Status))
	}
	bw.WriteString(`</svg>`)
	return bw.Flush()
}

func pathData(mp orb.MultiPolygon) string {
	var b strings.Builder
	for _, poly := range mp {
		for _, ring := range poly {
			for i, p := range ring {
				if i == 0 {
					b.WriteByte('M')
				} else {
					b.WriteByte('L')
				}
				fmt.Fprintf(&b, "%.2f,%.2f", p[0], p[1])
			}
			if len(ring) > 0 {
				b.WriteByte('Z')
			}
		}
	}
	return b.String()
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
