package vision

import (
	"image"
	"image/draw"
	"math"
	"sort"

	"github.com/nfnt/resize"
)

const (
	// searchBudget bounds the multiply-adds of a full-resolution scan.
	// Larger searches run a coarse pass first.
	searchBudget = 40_000_000
	// minCoarseSide keeps downscaled templates large enough to carry
	// structure.
	minCoarseSide    = 8
	coarseCandidates = 5
	flatEpsilon      = 1e-9
)

// plane is a grayscale raster with integral images of values and squares.
type plane struct {
	w, h  int
	pix   []float64
	sum   []float64
	sumSq []float64
}

func newPlane(img image.Image) *plane {
	b := img.Bounds()
	g, ok := img.(*image.Gray)
	if !ok || b.Min != (image.Point{}) {
		g = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	}

	p := &plane{w: b.Dx(), h: b.Dy()}
	p.pix = make([]float64, p.w*p.h)
	for y := 0; y < p.h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+p.w]
		for x, v := range row {
			p.pix[y*p.w+x] = float64(v)
		}
	}

	stride := p.w + 1
	p.sum = make([]float64, stride*(p.h+1))
	p.sumSq = make([]float64, stride*(p.h+1))
	for y := 1; y <= p.h; y++ {
		var rowSum, rowSq float64
		for x := 1; x <= p.w; x++ {
			v := p.pix[(y-1)*p.w+x-1]
			rowSum += v
			rowSq += v * v
			p.sum[y*stride+x] = p.sum[(y-1)*stride+x] + rowSum
			p.sumSq[y*stride+x] = p.sumSq[(y-1)*stride+x] + rowSq
		}
	}
	return p
}

// window returns the sum and sum of squares of the w×h window at (x, y).
func (p *plane) window(x, y, w, h int) (float64, float64) {
	stride := p.w + 1
	a, b := y*stride+x, y*stride+x+w
	c, d := (y+h)*stride+x, (y+h)*stride+x+w
	return p.sum[d] - p.sum[b] - p.sum[c] + p.sum[a],
		p.sumSq[d] - p.sumSq[b] - p.sumSq[c] + p.sumSq[a]
}

// kernel is a template with its mean removed.
type kernel struct {
	w, h int
	zm   []float64
	norm float64
}

func newKernel(p *plane) kernel {
	n := float64(p.w * p.h)
	var mean float64
	for _, v := range p.pix {
		mean += v
	}
	mean /= n

	k := kernel{w: p.w, h: p.h, zm: make([]float64, len(p.pix))}
	for i, v := range p.pix {
		k.zm[i] = v - mean
		k.norm += k.zm[i] * k.zm[i]
	}
	return k
}

// score is the zero-mean normalized cross-correlation at (x, y). Flat
// windows or templates score 0.
func (k kernel) score(src *plane, x, y int) float64 {
	if k.norm < flatEpsilon {
		return 0
	}
	n := float64(k.w * k.h)
	s, sq := src.window(x, y, k.w, k.h)
	variance := sq - s*s/n
	if variance < flatEpsilon {
		return 0
	}

	var cross float64
	for j := 0; j < k.h; j++ {
		row := src.pix[(y+j)*src.w+x : (y+j)*src.w+x+k.w]
		zrow := k.zm[j*k.w : (j+1)*k.w]
		for i, v := range row {
			cross += zrow[i] * v
		}
	}

	r := cross / math.Sqrt(k.norm*variance)
	if r > 1-flatEpsilon {
		return 1
	}
	return math.Max(-1, r)
}

// scan searches every top-left position in rect and returns the best.
func (k kernel) scan(src *plane, rect image.Rectangle) (image.Point, float64) {
	best, bestScore := rect.Min, math.Inf(-1)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if s := k.score(src, x, y); s > bestScore {
				best, bestScore = image.Pt(x, y), s
			}
		}
	}
	return best, bestScore
}

type candidate struct {
	pt    image.Point
	score float64
}

// MatchTemplate returns the top-left corner of the best match of tmpl in
// src and its correlation in [-1, 1]. A template larger than src scores 0.
func MatchTemplate(src, tmpl image.Image) (image.Point, float64) {
	sb, tb := src.Bounds(), tmpl.Bounds()
	if tb.Empty() || tb.Dx() > sb.Dx() || tb.Dy() > sb.Dy() {
		return image.Point{}, 0
	}

	s, t := newPlane(src), newPlane(tmpl)
	k := newKernel(t)
	positions := image.Rect(0, 0, s.w-t.w+1, s.h-t.h+1)

	cost := float64(positions.Dx()) * float64(positions.Dy()) * float64(t.w*t.h)
	factor := int(math.Ceil(math.Pow(cost/searchBudget, 0.25)))
	factor = min(factor, t.w/minCoarseSide, t.h/minCoarseSide)
	if factor < 2 {
		return k.scan(s, positions)
	}

	cands := coarseSearch(src, tmpl, factor)
	best, bestScore := image.Point{}, math.Inf(-1)
	for _, c := range cands {
		center := c.pt.Mul(factor)
		rect := image.Rect(center.X-2*factor, center.Y-2*factor, center.X+2*factor+1, center.Y+2*factor+1).Intersect(positions)
		if rect.Empty() {
			continue
		}
		if pt, sc := k.scan(s, rect); sc > bestScore {
			best, bestScore = pt, sc
		}
	}
	if math.IsInf(bestScore, -1) {
		return k.scan(s, positions)
	}
	return best, bestScore
}

// coarseSearch matches downscaled copies and returns the strongest,
// mutually separated positions in downscaled coordinates.
func coarseSearch(src, tmpl image.Image, factor int) []candidate {
	sb, tb := src.Bounds(), tmpl.Bounds()
	small := newPlane(resize.Resize(uint(sb.Dx()/factor), uint(sb.Dy()/factor), src, resize.Bilinear))
	smallT := newPlane(resize.Resize(uint(tb.Dx()/factor), uint(tb.Dy()/factor), tmpl, resize.Bilinear))
	if smallT.w > small.w || smallT.h > small.h {
		return nil
	}
	k := newKernel(smallT)

	var all []candidate
	for y := 0; y <= small.h-smallT.h; y++ {
		for x := 0; x <= small.w-smallT.w; x++ {
			all = append(all, candidate{pt: image.Pt(x, y), score: k.score(small, x, y)})
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	var picked []candidate
	for _, c := range all {
		if len(picked) == coarseCandidates {
			break
		}
		near := false
		for _, p := range picked {
			if abs(p.pt.X-c.pt.X) <= 2 && abs(p.pt.Y-c.pt.Y) <= 2 {
				near = true
				break
			}
		}
		if !near {
			picked = append(picked, c)
		}
	}
	return picked
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
