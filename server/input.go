package server

import (
	"strings"

	"pixelclimber/world"
)

// InputKind 客户端消息类型
type InputKind int

const (
	InputView InputKind = iota
	InputReset
	InputConsume
	InputTraction
	InputCheckpoint
)

// Input 客户端输入（意图），由服务端在 Tick 中解释并驱动世界
type Input struct {
	PlayerID   PlayerID
	Kind       InputKind
	View       world.View
	EntityID   uint64
	PlatformID int
	Seq        int64 // 客户端本地序列号，用于去重
}

// InputMessage 入站 JSON 文本消息
// 示例：{"type":"view","seq":12,"cameraTop":-300,"playerX":240,"playerY":180}
//
//	{"type":"consume","seq":13,"entityId":42}
type InputMessage struct {
	Type       string  `json:"type"`
	Seq        int64   `json:"seq,omitempty"`
	CameraTop  float64 `json:"cameraTop,omitempty"`
	PlayerX    float64 `json:"playerX,omitempty"`
	PlayerY    float64 `json:"playerY,omitempty"`
	EntityID   uint64  `json:"entityId,omitempty"`
	PlatformID int     `json:"platformId,omitempty"`
}

// toInput 未知类型返回 false
func (im InputMessage) toInput(pid PlayerID) (Input, bool) {
	in := Input{PlayerID: pid, Seq: im.Seq}
	switch strings.ToLower(im.Type) {
	case "view":
		in.Kind = InputView
		in.View = world.View{CameraTop: im.CameraTop, PlayerX: im.PlayerX, PlayerY: im.PlayerY}
	case "reset":
		in.Kind = InputReset
	case "consume":
		in.Kind = InputConsume
		in.EntityID = im.EntityID
	case "traction":
		in.Kind = InputTraction
		in.PlatformID = im.PlatformID
	case "checkpoint":
		in.Kind = InputCheckpoint
		in.EntityID = im.EntityID
	default:
		return in, false
	}
	return in, true
}
