package server

import "pixelclimber/world"

// PlayerID 表示玩家唯一标识
type PlayerID string

// PlayerState 为广播给客户端的轻量状态
type PlayerState struct {
	ID      string  `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	HeightM int     `json:"heightM"`
	Score   int     `json:"score"`
	Health  int     `json:"health"`
	Boots   int     `json:"boots"`
}

// Player 房间内的玩家。位置由客户端物理上报，拾取结算由服务端权威执行
type Player struct {
	ID      PlayerID
	View    world.View
	HasView bool
	LastSeq int64

	Score  int
	Health int
	Boots  int // 剩余防滑道具次数

	Conn *ClientConn // 网络连接的发送端（写协程）
}

const maxHealth = 100

func (p *Player) state(w *world.World) PlayerState {
	return PlayerState{
		ID:      string(p.ID),
		X:       p.View.PlayerX,
		Y:       p.View.PlayerY,
		HeightM: w.HeightMeters(p.View.PlayerY),
		Score:   p.Score,
		Health:  p.Health,
		Boots:   p.Boots,
	}
}

// collect 结算拾取物效果
func (p *Player) collect(e world.SatelliteEntity) {
	p.Score += e.Payload.Score
	p.Boots += e.Payload.Traction
	p.Health += e.Payload.Heal - e.Payload.Damage
	if p.Health > maxHealth {
		p.Health = maxHealth
	}
	if p.Health < 0 {
		p.Health = 0
	}
}
