package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 5 * time.Second
	readWait  = 60 * time.Second
	joinWait  = 2 * time.Second
)

// ClientConn 一个 WebSocket 客户端：有界发送队列 + 读写两个协程
type ClientConn struct {
	ws   *websocket.Conn
	send chan []byte
}

func NewClientConn(ws *websocket.Conn, queue int) *ClientConn {
	if queue <= 0 {
		queue = 64
	}
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, queue),
	}
}

// Enqueue 非阻塞入队；客户端跟不上时丢弃，下一次版本变化会带来完整快照
func (c *ClientConn) Enqueue(b []byte) {
	select {
	case c.send <- b:
	default:
		// 为了实时性，丢弃消息（防止阻塞 Tick）
	}
}

// Close 关闭发送队列，写协程随之关闭连接。只在 Tick 线程调用
func (c *ClientConn) Close() {
	if c.send != nil {
		close(c.send)
		c.send = nil
	}
}

// writePump 把快照与落石消息写出；队列关闭后发送关闭帧
func (c *ClientConn) writePump(send <-chan []byte) {
	defer c.ws.Close()
	for msg := range send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// readPump 解析视角/拾取/重置等消息，转成 Input 投递给房间
func (c *ClientConn) readPump(room *Room, playerID PlayerID) {
	defer c.ws.Close()
	// 连接断开后按连接身份离开，不误伤同名的新连接
	defer room.RequestLeave(playerID, c)
	c.ws.SetReadLimit(64 << 10)
	_ = c.ws.SetReadDeadline(time.Now().Add(readWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(readWait)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(readWait))
		var im InputMessage
		if err := json.Unmarshal(payload, &im); err != nil {
			continue
		}
		if in, ok := im.toInput(playerID); ok {
			room.OnInput(in)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// 静态页面与服务同源部署之外的来源也放行
		return true
	},
}

// HandleWS 玩家接入：/ws?room=room-1&player=alice；加入动作在 Tick 线程执行
func (m *RoomManager) HandleWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		http.Error(w, "missing player query", http.StatusBadRequest)
		return
	}
	room, err := m.GetOrCreateRoom(r.URL.Query().Get("room"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}

	client := NewClientConn(ws, room.sendQueue)
	send := client.send
	ctx, cancel := context.WithTimeout(context.Background(), joinWait)
	defer cancel()
	if err := room.Do(ctx, func() { room.JoinPlayer(PlayerID(playerID), client) }); err != nil {
		Log.Warnf("join %s/%s failed: %v", room.ID, playerID, err)
		_ = ws.Close()
		return
	}

	go client.writePump(send)
	go client.readPump(room, PlayerID(playerID))
}
