package world

import "math"

// Band 难度分段
type Band int

const (
	BandEarly Band = iota
	BandMid
	BandLate
)

func (b Band) String() string {
	switch b {
	case BandEarly:
		return "early"
	case BandMid:
		return "mid"
	default:
		return "late"
	}
}

// Profile 某一高度上的生成分布
type Profile struct {
	Height             float64
	Band               Band
	SizeWeights        [3]float64
	SizeScale          float64
	MaterialWeights    [3]float64
	HazardDensity      float64
	CollectibleDensity float64
	HealthDensity      float64
	TractionDensity    float64
}

// Curve 高度 -> 难度分布，纯函数
type Curve struct {
	cfg DifficultyConfig
}

func NewCurve(cfg DifficultyConfig) Curve { return Curve{cfg: cfg} }

// At 累计攀升高度 h 处的分布
func (c Curve) At(h float64) Profile {
	d := c.cfg
	if h < 0 {
		h = 0
	}
	p := Profile{Height: h, HealthDensity: d.HealthDensity}
	switch {
	case h < d.Threshold1:
		p.Band = BandEarly
		p.SizeWeights = d.EarlySizeWeights
		p.SizeScale = d.EarlyScale
		p.MaterialWeights = d.EarlyMaterials
		p.HazardDensity = d.EarlyHazard
		p.CollectibleDensity = d.EarlyCollectible
	case h < d.Threshold2:
		t := (h - d.Threshold1) / (d.Threshold2 - d.Threshold1)
		p.Band = BandMid
		p.SizeWeights = lerp3(d.EarlySizeWeights, d.LateSizeWeights, t)
		p.SizeScale = lerp(d.EarlyScale, 1, t)
		p.MaterialWeights = lerp3(d.EarlyMaterials, d.MidMaterials, t)
		p.HazardDensity = lerp(d.EarlyHazard, d.MidHazard, t)
		p.CollectibleDensity = lerp(d.EarlyCollectible, d.LateCollectible, t)
	default:
		over := h - d.Threshold2
		p.Band = BandLate
		p.SizeWeights = d.LateSizeWeights
		p.SizeScale = math.Max(d.MinScale, 1-over/d.LateShrinkSpan*(1-d.MinScale))
		p.MaterialWeights = lerp3(d.MidMaterials, d.LateMaterials, clamp01(over/d.LateRampSpan))
		p.HazardDensity = d.MidHazard * (1 + d.IceHazardBoost*share(p.MaterialWeights, int(MaterialIce)))
		p.CollectibleDensity = d.LateCollectible
	}
	p.HazardDensity = clamp01(p.HazardDensity)
	p.TractionDensity = clamp01(d.TractionBase + d.TractionPerIce*share(p.MaterialWeights, int(MaterialIce)))
	return p
}

// PickWeighted 按固定类别顺序累加权重，返回第一个累计值 >= u 的下标
func PickWeighted(rng Rand, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	u := rng.Float64() * total
	acc := 0.0
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if acc >= u {
			return i
		}
	}
	return last
}

// PlatformWidth 尺寸档位、缩放与材质共同决定占地宽度，不低于最小可玩宽度
func (r *Resolved) PlatformWidth(size SizeClass, m Material, scale float64) float64 {
	w := r.Platforms.Widths[size] * scale * r.materials[m].FootprintScale
	return math.Max(r.Platforms.MinWidth, w)
}

// ExpectedWidth 某高度上平台宽度的期望值
func (r *Resolved) ExpectedWidth(c Curve, h float64) float64 {
	p := c.At(h)
	sw := normalize(p.SizeWeights)
	mw := normalize(p.MaterialWeights)
	e := 0.0
	for s := SizeClass(0); s < numSizes; s++ {
		for m := Material(0); m < numMaterials; m++ {
			e += sw[s] * mw[m] * r.PlatformWidth(s, m, p.SizeScale)
		}
	}
	return e
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func lerp3(a, b [3]float64, t float64) [3]float64 {
	return [3]float64{lerp(a[0], b[0], t), lerp(a[1], b[1], t), lerp(a[2], b[2], t)}
}

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }

func normalize(ws [3]float64) [3]float64 {
	total := ws[0] + ws[1] + ws[2]
	if total <= 0 {
		return ws
	}
	return [3]float64{ws[0] / total, ws[1] / total, ws[2] / total}
}

func share(ws [3]float64, i int) float64 { return normalize(ws)[i] }
