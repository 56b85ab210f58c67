package world

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig 配置错误（启动时即拒绝，不在运行中容忍）
var ErrInvalidConfig = errors.New("world: invalid config")

// MovementProfile 玩家跳跃参数，由玩家模块提供，生成器只读
type MovementProfile struct {
	Gravity        float64 `json:"gravity" yaml:"gravity" toml:"gravity"`
	TakeoffSpeed   float64 `json:"takeoffSpeed" yaml:"takeoff_speed" toml:"takeoff_speed"`
	RunUpReduction float64 `json:"runUpReduction" yaml:"run_up_reduction" toml:"run_up_reduction"`
	MaxSpeedX      float64 `json:"maxSpeedX" yaml:"max_speed_x" toml:"max_speed_x"`
	SideImpulseMax float64 `json:"sideImpulseMax" yaml:"side_impulse_max" toml:"side_impulse_max"`
	MoveSpeed      float64 `json:"moveSpeed" yaml:"move_speed" toml:"move_speed"`
}

// Validate 所有参数必须为正
func (m MovementProfile) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"gravity", m.Gravity},
		{"takeoff_speed", m.TakeoffSpeed},
		{"run_up_reduction", m.RunUpReduction},
		{"max_speed_x", m.MaxSpeedX},
		{"side_impulse_max", m.SideImpulseMax},
		{"move_speed", m.MoveSpeed},
	}
	for _, f := range fields {
		if !(f.v > 0) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: movement.%s must be > 0, got %v", ErrInvalidConfig, f.name, f.v)
		}
	}
	if m.RunUpReduction >= 1 {
		return fmt.Errorf("%w: movement.run_up_reduction must be < 1, got %v", ErrInvalidConfig, m.RunUpReduction)
	}
	return nil
}

// PlacementConfig 放置求解器参数
type PlacementConfig struct {
	SafetyShrink    float64 `json:"safetyShrink" yaml:"safety_shrink" toml:"safety_shrink"`
	EmergencyExpand float64 `json:"emergencyExpand" yaml:"emergency_expand" toml:"emergency_expand"`
	MaxOverlap      float64 `json:"maxOverlap" yaml:"max_overlap" toml:"max_overlap"`
	BufferBase      float64 `json:"bufferBase" yaml:"buffer_base" toml:"buffer_base"`
	BufferShrink    float64 `json:"bufferShrink" yaml:"buffer_shrink" toml:"buffer_shrink"`
	BufferMin       float64 `json:"bufferMin" yaml:"buffer_min" toml:"buffer_min"`
	BufferMax       float64 `json:"bufferMax" yaml:"buffer_max" toml:"buffer_max"`
	MinZoneWidth    float64 `json:"minZoneWidth" yaml:"min_zone_width" toml:"min_zone_width"`
}

// PlatformConfig 平台尺寸与起始平台
type PlatformConfig struct {
	Widths       [3]float64 `json:"widths" yaml:"widths" toml:"widths"`
	Height       float64    `json:"height" yaml:"height" toml:"height"`
	MinWidth     float64    `json:"minWidth" yaml:"min_width" toml:"min_width"`
	StarterCount int        `json:"starterCount" yaml:"starter_count" toml:"starter_count"`
	StarterWidth float64    `json:"starterWidth" yaml:"starter_width" toml:"starter_width"`
	StarterStep  float64    `json:"starterStep" yaml:"starter_step" toml:"starter_step"`
	InitialSpawn int        `json:"initialSpawn" yaml:"initial_spawn" toml:"initial_spawn"`
}

// DifficultyConfig 高度分段难度曲线
type DifficultyConfig struct {
	Threshold1     float64 `json:"threshold1" yaml:"threshold1" toml:"threshold1"`
	Threshold2     float64 `json:"threshold2" yaml:"threshold2" toml:"threshold2"`
	LateShrinkSpan float64 `json:"lateShrinkSpan" yaml:"late_shrink_span" toml:"late_shrink_span"`
	LateRampSpan   float64 `json:"lateRampSpan" yaml:"late_ramp_span" toml:"late_ramp_span"`

	EarlyScale float64 `json:"earlyScale" yaml:"early_scale" toml:"early_scale"`
	MinScale   float64 `json:"minScale" yaml:"min_scale" toml:"min_scale"`

	EarlySizeWeights [3]float64 `json:"earlySizeWeights" yaml:"early_size_weights" toml:"early_size_weights"`
	LateSizeWeights  [3]float64 `json:"lateSizeWeights" yaml:"late_size_weights" toml:"late_size_weights"`

	EarlyMaterials [3]float64 `json:"earlyMaterials" yaml:"early_materials" toml:"early_materials"`
	MidMaterials   [3]float64 `json:"midMaterials" yaml:"mid_materials" toml:"mid_materials"`
	LateMaterials  [3]float64 `json:"lateMaterials" yaml:"late_materials" toml:"late_materials"`

	EarlyHazard float64 `json:"earlyHazard" yaml:"early_hazard" toml:"early_hazard"`
	MidHazard   float64 `json:"midHazard" yaml:"mid_hazard" toml:"mid_hazard"`
	// IceHazardBoost 后段按冰面概率放大危险物密度
	IceHazardBoost float64 `json:"iceHazardBoost" yaml:"ice_hazard_boost" toml:"ice_hazard_boost"`

	EarlyCollectible float64 `json:"earlyCollectible" yaml:"early_collectible" toml:"early_collectible"`
	LateCollectible  float64 `json:"lateCollectible" yaml:"late_collectible" toml:"late_collectible"`
	HealthDensity    float64 `json:"healthDensity" yaml:"health_density" toml:"health_density"`
	TractionBase     float64 `json:"tractionBase" yaml:"traction_base" toml:"traction_base"`
	TractionPerIce   float64 `json:"tractionPerIce" yaml:"traction_per_ice" toml:"traction_per_ice"`
}

// EntityConfig 附属实体参数
type EntityConfig struct {
	EdgePad         float64    `json:"edgePad" yaml:"edge_pad" toml:"edge_pad"`
	CeilingFrac     float64    `json:"ceilingFrac" yaml:"ceiling_frac" toml:"ceiling_frac"`
	MinSeparation   [4]float64 `json:"minSeparation" yaml:"min_separation" toml:"min_separation"`
	CoinScore       int        `json:"coinScore" yaml:"coin_score" toml:"coin_score"`
	HealAmount      int        `json:"healAmount" yaml:"heal_amount" toml:"heal_amount"`
	TractionCharges int        `json:"tractionCharges" yaml:"traction_charges" toml:"traction_charges"`
	HazardDamage    int        `json:"hazardDamage" yaml:"hazard_damage" toml:"hazard_damage"`

	// CheckpointInterval 以米计（10 个世界单位 = 1 米），0 表示关闭
	CheckpointInterval int `json:"checkpointInterval" yaml:"checkpoint_interval" toml:"checkpoint_interval"`
}

// DebrisConfig 落石发射器
type DebrisConfig struct {
	SpawnMs  float64 `json:"spawnMs" yaml:"spawn_ms" toml:"spawn_ms"`
	Max      int     `json:"max" yaml:"max" toml:"max"`
	Scale    float64 `json:"scale" yaml:"scale" toml:"scale"`
	Damage   int     `json:"damage" yaml:"damage" toml:"damage"`
	VYMin    float64 `json:"vyMin" yaml:"vy_min" toml:"vy_min"`
	VYMax    float64 `json:"vyMax" yaml:"vy_max" toml:"vy_max"`
	VXMax    float64 `json:"vxMax" yaml:"vx_max" toml:"vx_max"`
	SpinMax  float64 `json:"spinMax" yaml:"spin_max" toml:"spin_max"`
	Lifespan float64 `json:"lifespanMs" yaml:"lifespan_ms" toml:"lifespan_ms"`
}

// Config 生成器原始配置
type Config struct {
	Movement MovementProfile `json:"movement" yaml:"movement" toml:"movement"`

	WorldWidth float64 `json:"worldWidth" yaml:"world_width" toml:"world_width"`
	MarginX    float64 `json:"marginX" yaml:"margin_x" toml:"margin_x"`
	ViewHeight float64 `json:"viewHeight" yaml:"view_height" toml:"view_height"`
	BaseY      float64 `json:"baseY" yaml:"base_y" toml:"base_y"`

	SpawnAhead    float64 `json:"spawnAhead" yaml:"spawn_ahead" toml:"spawn_ahead"`
	DespawnBehind float64 `json:"despawnBehind" yaml:"despawn_behind" toml:"despawn_behind"`

	GapMinFrac float64 `json:"gapMinFrac" yaml:"gap_min_frac" toml:"gap_min_frac"`
	GapMaxFrac float64 `json:"gapMaxFrac" yaml:"gap_max_frac" toml:"gap_max_frac"`

	Placement  PlacementConfig  `json:"placement" yaml:"placement" toml:"placement"`
	Platforms  PlatformConfig   `json:"platforms" yaml:"platforms" toml:"platforms"`
	Difficulty DifficultyConfig `json:"difficulty" yaml:"difficulty" toml:"difficulty"`
	Entities   EntityConfig     `json:"entities" yaml:"entities" toml:"entities"`
	Debris     DebrisConfig     `json:"debris" yaml:"debris" toml:"debris"`
}

// DefaultConfig 默认配置：保证每个采样到的间隙都能严格放置
func DefaultConfig() Config {
	return Config{
		Movement: MovementProfile{
			Gravity:        1000,
			TakeoffSpeed:   640,
			RunUpReduction: 0.1,
			MaxSpeedX:      420,
			SideImpulseMax: 200,
			MoveSpeed:      260,
		},
		WorldWidth:    720,
		MarginX:       48,
		ViewHeight:    800,
		BaseY:         680,
		SpawnAhead:    1200,
		DespawnBehind: 1800,
		GapMinFrac:    0.55,
		GapMaxFrac:    0.85,
		Placement: PlacementConfig{
			SafetyShrink:    0.95,
			EmergencyExpand: 0.15,
			MaxOverlap:      0,
			BufferBase:      48,
			BufferShrink:    0.1,
			BufferMin:       12,
			BufferMax:       40,
			MinZoneWidth:    8,
		},
		Platforms: PlatformConfig{
			Widths:       [3]float64{80, 120, 160},
			Height:       18,
			MinWidth:     56,
			StarterCount: 6,
			StarterWidth: 120,
			StarterStep:  40,
			InitialSpawn: 20,
		},
		Difficulty: DifficultyConfig{
			Threshold1:       3000,
			Threshold2:       8000,
			LateShrinkSpan:   8000,
			LateRampSpan:     5000,
			EarlyScale:       1.15,
			MinScale:         0.8,
			EarlySizeWeights: [3]float64{0.15, 0.35, 0.5},
			LateSizeWeights:  [3]float64{0.5, 0.35, 0.15},
			EarlyMaterials:   [3]float64{0.9, 0.1, 0},
			MidMaterials:     [3]float64{0.3, 0.6, 0.1},
			LateMaterials:    [3]float64{0.1, 0.3, 0.6},
			EarlyHazard:      0.05,
			MidHazard:        0.2,
			IceHazardBoost:   0.5,
			EarlyCollectible: 0.7,
			LateCollectible:  0.5,
			HealthDensity:    0.25,
			TractionBase:     0.05,
			TractionPerIce:   0.3,
		},
		Entities: EntityConfig{
			EdgePad:            30,
			CeilingFrac:        0.9,
			MinSeparation:      [4]float64{120, 200, 300, 160},
			CoinScore:          50,
			HealAmount:         25,
			TractionCharges:    1,
			HazardDamage:       10,
			CheckpointInterval: 250,
		},
		Debris: DebrisConfig{
			SpawnMs:  1200,
			Max:      24,
			Scale:    1.5,
			Damage:   10,
			VYMin:    120,
			VYMax:    220,
			VXMax:    40,
			SpinMax:  140,
			Lifespan: 9000,
		},
	}
}

// Resolved 解析后的配置：派生常量在加载时一次算好，运行期不再重算
type Resolved struct {
	Config

	MaxJumpHeight float64
	GapMin        int
	GapMax        int
	// BoundsMin/BoundsMax 可玩横向范围（已扣除墙边距）
	BoundsMin float64
	BoundsMax float64
	Capacity  int

	materials [numMaterials]MaterialProps
	traction  MaterialProps
}

// Resolve 校验并派生常量
func (c Config) Resolve() (Resolved, error) {
	r := Resolved{Config: c}
	if err := c.Movement.Validate(); err != nil {
		return r, err
	}
	if !(c.GapMinFrac > 0) || c.GapMinFrac >= c.GapMaxFrac || c.GapMaxFrac >= 1 {
		return r, fmt.Errorf("%w: gap fractions must satisfy 0 < min < max < 1, got [%v,%v]",
			ErrInvalidConfig, c.GapMinFrac, c.GapMaxFrac)
	}
	r.MaxJumpHeight = MaxJumpHeight(c.Movement)
	r.GapMin, r.GapMax = GapRange(c.Movement, c.GapMinFrac, c.GapMaxFrac)
	if r.GapMin < 1 {
		return r, fmt.Errorf("%w: jump height %.1f too small for a positive gap", ErrInvalidConfig, r.MaxJumpHeight)
	}
	// 防止单帧无限生成
	if c.SpawnAhead <= float64(r.GapMax) {
		return r, fmt.Errorf("%w: spawn_ahead %.1f must exceed max gap %d", ErrInvalidConfig, c.SpawnAhead, r.GapMax)
	}
	if c.DespawnBehind <= 0 || c.ViewHeight <= 0 {
		return r, fmt.Errorf("%w: despawn_behind and view_height must be > 0", ErrInvalidConfig)
	}
	if c.MarginX < 0 {
		return r, fmt.Errorf("%w: margin_x must be >= 0", ErrInvalidConfig)
	}
	r.BoundsMin = c.MarginX
	r.BoundsMax = c.WorldWidth - c.MarginX

	if err := c.Placement.validate(); err != nil {
		return r, err
	}
	if err := c.Platforms.validate(); err != nil {
		return r, err
	}
	if err := c.Difficulty.validate(); err != nil {
		return r, err
	}
	widest := c.Platforms.Widths[SizeLarge] * math.Max(1, c.Difficulty.EarlyScale)
	widest = math.Max(widest, c.Platforms.StarterWidth)
	if r.BoundsMax-r.BoundsMin < widest {
		return r, fmt.Errorf("%w: playable width %.1f narrower than widest platform %.1f",
			ErrInvalidConfig, r.BoundsMax-r.BoundsMin, widest)
	}
	if c.Entities.CeilingFrac <= 0 || c.Entities.CeilingFrac > 1 {
		return r, fmt.Errorf("%w: entities.ceiling_frac must be in (0,1]", ErrInvalidConfig)
	}
	if c.Entities.EdgePad < 0 || 2*c.Entities.EdgePad >= r.BoundsMax-r.BoundsMin {
		return r, fmt.Errorf("%w: entities.edge_pad out of range", ErrInvalidConfig)
	}

	r.materials = [numMaterials]MaterialProps{
		MaterialDirt:  {Friction: 1.2, DamageMult: 0.7, FootprintScale: 1.0},
		MaterialStone: {Friction: 0.9, DamageMult: 1.0, FootprintScale: 1.0},
		MaterialIce:   {Friction: 0.3, DamageMult: 1.3, FootprintScale: 0.9},
	}
	r.traction = r.materials[MaterialDirt]

	window := c.ViewHeight + c.SpawnAhead + c.DespawnBehind + float64(r.GapMax)
	r.Capacity = int(math.Ceil(window/float64(r.GapMin))) + c.Platforms.StarterCount + 2
	if floor := c.Platforms.StarterCount + c.Platforms.InitialSpawn + 2; r.Capacity < floor {
		r.Capacity = floor
	}
	return r, nil
}

// Props 材质基础属性
func (r *Resolved) Props(m Material) MaterialProps { return r.materials[m] }

func (p PlacementConfig) validate() error {
	switch {
	case !(p.SafetyShrink > 0) || p.SafetyShrink > 1:
		return fmt.Errorf("%w: placement.safety_shrink must be in (0,1]", ErrInvalidConfig)
	case p.EmergencyExpand < 0:
		return fmt.Errorf("%w: placement.emergency_expand must be >= 0", ErrInvalidConfig)
	case p.MaxOverlap < 0 || p.MaxOverlap >= 1:
		return fmt.Errorf("%w: placement.max_overlap must be in [0,1)", ErrInvalidConfig)
	case p.BufferMin < 0 || p.BufferMin > p.BufferMax:
		return fmt.Errorf("%w: placement buffer bounds out of order", ErrInvalidConfig)
	case p.BufferShrink < 0:
		return fmt.Errorf("%w: placement.buffer_shrink must be >= 0", ErrInvalidConfig)
	case p.MinZoneWidth < 0:
		return fmt.Errorf("%w: placement.min_zone_width must be >= 0", ErrInvalidConfig)
	}
	return nil
}

func (p PlatformConfig) validate() error {
	prev := 0.0
	for i, w := range p.Widths {
		if !(w > prev) {
			return fmt.Errorf("%w: platforms.widths must be positive and increasing (index %d)", ErrInvalidConfig, i)
		}
		prev = w
	}
	if !(p.Height > 0) || !(p.MinWidth > 0) || !(p.StarterWidth > 0) {
		return fmt.Errorf("%w: platform height/min_width/starter_width must be > 0", ErrInvalidConfig)
	}
	if p.StarterCount < 1 || p.InitialSpawn < 0 {
		return fmt.Errorf("%w: need at least one starter platform", ErrInvalidConfig)
	}
	return nil
}

func (d DifficultyConfig) validate() error {
	if !(d.Threshold1 > 0) || d.Threshold2 <= d.Threshold1 {
		return fmt.Errorf("%w: difficulty thresholds must satisfy 0 < t1 < t2", ErrInvalidConfig)
	}
	if !(d.LateShrinkSpan > 0) || !(d.LateRampSpan > 0) {
		return fmt.Errorf("%w: difficulty spans must be > 0", ErrInvalidConfig)
	}
	if d.EarlyScale < 1 || !(d.MinScale > 0) || d.MinScale > 1 {
		return fmt.Errorf("%w: difficulty scales must satisfy early >= 1 >= min > 0", ErrInvalidConfig)
	}
	for name, ws := range map[string][3]float64{
		"early_size_weights": d.EarlySizeWeights,
		"late_size_weights":  d.LateSizeWeights,
		"early_materials":    d.EarlyMaterials,
		"mid_materials":      d.MidMaterials,
		"late_materials":     d.LateMaterials,
	} {
		if err := checkWeights(ws[:]); err != nil {
			return fmt.Errorf("%w: difficulty.%s: %v", ErrInvalidConfig, name, err)
		}
	}
	for _, p := range []float64{d.EarlyHazard, d.MidHazard, d.EarlyCollectible, d.LateCollectible, d.HealthDensity, d.TractionBase} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%w: difficulty densities must be probabilities", ErrInvalidConfig)
		}
	}
	return nil
}

func checkWeights(ws []float64) error {
	total := 0.0
	for _, w := range ws {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("negative weight %v", w)
		}
		total += w
	}
	if !(total > 0) {
		return errors.New("weights sum to zero")
	}
	return nil
}
