package extraction

import (
	"math"
	"sort"
	"strings"

	"github.com/anime-shed/receipt-inspector-go/internal/ocr"
)

// line is one visual row of tokens ordered left to right
type line struct {
	index  int
	tokens []ocr.Token
	top    float64
	bottom float64
}

func (l *line) text() string {
	words := make([]string, len(l.tokens))
	for i, t := range l.tokens {
		words[i] = t.Text
	}
	return strings.Join(words, " ")
}

func (l *line) centerY() float64 { return (l.top + l.bottom) / 2 }

// height is the mean token height, a proxy for font size
func (l *line) height() float64 {
	if len(l.tokens) == 0 {
		return 0
	}
	var sum float64
	for _, t := range l.tokens {
		sum += t.Box.Height()
	}
	return sum / float64(len(l.tokens))
}

func (l *line) meanConfidence() float64 {
	if len(l.tokens) == 0 {
		return 0
	}
	var sum float64
	for _, t := range l.tokens {
		sum += t.Confidence
	}
	return sum / float64(len(l.tokens))
}

// page is the row structure of one recognition
type page struct {
	lines    []*line
	height   float64
	geometry bool
}

// buildPage groups boxed tokens into rows by vertical overlap. Without geometry it
// falls back to the text's own line breaks and synthesizes one unit of height per row.
func buildPage(rec *ocr.Recognition) *page {
	if rec.HasGeometry() {
		return buildSpatialPage(rec)
	}
	return buildTextPage(rec)
}

func buildSpatialPage(rec *ocr.Recognition) *page {
	tokens := make([]ocr.Token, 0, len(rec.Tokens))
	for _, t := range rec.Tokens {
		if t.HasBox && strings.TrimSpace(t.Text) != "" {
			tokens = append(tokens, t)
		}
	}
	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].Box.CenterY() < tokens[j].Box.CenterY()
	})

	var lines []*line
	var cur *line
	for _, t := range tokens {
		if cur != nil && sameRow(cur, t) {
			cur.tokens = append(cur.tokens, t)
			cur.top = min(cur.top, t.Box.Y1)
			cur.bottom = max(cur.bottom, t.Box.Y2)
			continue
		}
		cur = &line{tokens: []ocr.Token{t}, top: t.Box.Y1, bottom: t.Box.Y2}
		lines = append(lines, cur)
	}

	p := &page{lines: lines, height: rec.PageHeight, geometry: true}
	for i, l := range lines {
		l.index = i
		sort.SliceStable(l.tokens, func(a, b int) bool {
			return l.tokens[a].Box.X1 < l.tokens[b].Box.X1
		})
		p.height = max(p.height, l.bottom)
	}
	return p
}

// sameRow accepts t when its vertical center falls inside the row band
func sameRow(l *line, t ocr.Token) bool {
	tolerance := max(l.height(), t.Box.Height()) / 2
	return math.Abs(t.Box.CenterY()-l.centerY()) <= tolerance
}

func buildTextPage(rec *ocr.Recognition) *page {
	conf := rec.MeanConfidence()
	if len(rec.Tokens) == 0 {
		conf = 0.5
	}

	p := &page{}
	for _, raw := range strings.Split(rec.Text, "\n") {
		words := strings.Fields(raw)
		if len(words) == 0 {
			continue
		}
		y := float64(len(p.lines))
		l := &line{index: len(p.lines), top: y, bottom: y + 1}
		for i, w := range words {
			l.tokens = append(l.tokens, ocr.Token{
				Text:       w,
				Box:        ocr.BoundingBox{X1: float64(i), Y1: y, X2: float64(i) + 1, Y2: y + 1},
				Confidence: conf,
			})
		}
		p.lines = append(p.lines, l)
	}
	p.height = float64(len(p.lines))
	return p
}
