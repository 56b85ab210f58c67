package world

import "fmt"

// SizeClass 平台尺寸档位，顺序固定（加权抽样按此顺序累加）
type SizeClass int

const (
	SizeSmall SizeClass = iota
	SizeMedium
	SizeLarge
	numSizes
)

func (s SizeClass) String() string {
	switch s {
	case SizeSmall:
		return "small"
	case SizeMedium:
		return "medium"
	case SizeLarge:
		return "large"
	default:
		return fmt.Sprintf("size(%d)", int(s))
	}
}

func (s SizeClass) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SizeClass) UnmarshalText(b []byte) (err error) {
	*s, err = parseEnum(b, numSizes, "size")
	return err
}

// parseEnum 按 String() 反查枚举值
func parseEnum[T interface {
	~int
	String() string
}](text []byte, n T, what string) (T, error) {
	for v := T(0); v < n; v++ {
		if v.String() == string(text) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("world: unknown %s %q", what, text)
}

// Material 平台材质：决定摩擦、坠落伤害倍率与占地缩放
type Material int

const (
	MaterialDirt Material = iota
	MaterialStone
	MaterialIce
	numMaterials
)

func (m Material) String() string {
	switch m {
	case MaterialDirt:
		return "dirt"
	case MaterialStone:
		return "stone"
	case MaterialIce:
		return "ice"
	default:
		return fmt.Sprintf("material(%d)", int(m))
	}
}

func (m Material) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Material) UnmarshalText(b []byte) (err error) {
	*m, err = parseEnum(b, numMaterials, "material")
	return err
}

// MaterialProps 材质属性包
type MaterialProps struct {
	Friction       float64 `json:"friction"`
	DamageMult     float64 `json:"damageMult"`
	FootprintScale float64 `json:"footprintScale"`
}

// Lifecycle 平台生命周期：只有常驻与待回收两种状态，回收后回到常驻
type Lifecycle int

const (
	Resident Lifecycle = iota
	Recyclable
)

func (l Lifecycle) String() string {
	if l == Recyclable {
		return "recyclable"
	}
	return "resident"
}

func (l Lifecycle) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Lifecycle) UnmarshalText(b []byte) (err error) {
	*l, err = parseEnum(b, Recyclable+1, "state")
	return err
}

// Platform 池化的平台槽位。ID 即槽位下标，回收时原地覆写，ID 不变
type Platform struct {
	ID       int       `json:"id"`
	Seq      uint64    `json:"seq"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	Size     SizeClass `json:"size"`
	Material Material  `json:"material"`
	Modified bool      `json:"modified"`
	State    Lifecycle `json:"state"`

	// 生成时的诊断信息
	Gap      int      `json:"gap"`
	Reach    float64  `json:"reach"`
	Strategy Strategy `json:"strategy"`

	props    MaterialProps
	override MaterialProps
}

// Surface 返回当前生效的材质属性（被防滑道具改写时返回覆盖值）
func (p *Platform) Surface() MaterialProps {
	if p.Modified {
		return p.override
	}
	return p.props
}

// Left / Right 平台水平范围
func (p *Platform) Left() float64  { return p.X - p.Width/2 }
func (p *Platform) Right() float64 { return p.X + p.Width/2 }

// Anchor 当前“世界顶端”：最近放置的平台参考点
type Anchor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EntityKind 附属实体类别
type EntityKind int

const (
	KindCoin EntityKind = iota
	KindHealthPack
	KindTraction
	KindHazard
	KindCheckpoint
	numKinds
)

func (k EntityKind) String() string {
	switch k {
	case KindCoin:
		return "coin"
	case KindHealthPack:
		return "health"
	case KindTraction:
		return "traction"
	case KindHazard:
		return "hazard"
	case KindCheckpoint:
		return "checkpoint"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k EntityKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *EntityKind) UnmarshalText(b []byte) (err error) {
	*k, err = parseEnum(b, numKinds, "entity kind")
	return err
}

// Payload 类别相关的数据，未用到的字段为零值
type Payload struct {
	Score        int `json:"score,omitempty"`
	Heal         int `json:"heal,omitempty"`
	Traction     int `json:"traction,omitempty"`
	Damage       int `json:"damage,omitempty"`
	HeightMeters int `json:"heightMeters,omitempty"`
}

// SatelliteEntity 围绕平台对放置的收集物/危险物/存档点
type SatelliteEntity struct {
	ID      uint64     `json:"id"`
	Kind    EntityKind `json:"kind"`
	X       float64    `json:"x"`
	Y       float64    `json:"y"`
	Zone    Zone       `json:"zone"`
	Payload Payload    `json:"payload"`
	// Active 仅对存档点有意义：已被激活
	Active bool `json:"active,omitempty"`
}

// View 每帧由外部输入的相机与玩家位置（y 向上递减）
type View struct {
	CameraTop float64 `json:"cameraTop"`
	PlayerX   float64 `json:"playerX"`
	PlayerY   float64 `json:"playerY"`
}

// Snapshot 供渲染/碰撞读取的只读副本
type Snapshot struct {
	Tick       uint64            `json:"tick"`
	Version    uint64            `json:"version"`
	Anchor     Anchor            `json:"anchor"`
	Platforms  []Platform        `json:"platforms"`
	Entities   []SatelliteEntity `json:"entities"`
	Checkpoint *SatelliteEntity  `json:"checkpoint,omitempty"`
}
