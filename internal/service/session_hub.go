package service

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"sat_prep_backend/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SessionEvent 推送给考试端的会话事件（暂停、模块切换、交卷），
// 同一考生多开页面时保持计时和进度同步。
type SessionEvent struct {
	Type          string      `json:"type"` // paused / module_completed / exam_completed
	SessionID     uint        `json:"sessionId"`
	CurrentModule string      `json:"currentModule,omitempty"`
	TimeRemaining int         `json:"timeRemaining,omitempty"`
	Data          interface{} `json:"data,omitempty"`
}

type SessionClient struct {
	Hub       *SessionHub
	Conn      *websocket.Conn
	Send      chan []byte
	UserID    uint
	SessionID uint
	Limiter   *rate.Limiter
}

func (c *SessionClient) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		// 客户端只收不发，读到的消息仅做限流消耗后丢弃
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.Uint("userId", c.UserID))
			}
			break
		}
		if !c.Limiter.Allow() {
			continue
		}
	}
}

func (c *SessionClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SessionHub 按会话分组的连接管理
type SessionHub struct {
	mu         sync.RWMutex
	sessions   map[uint]map[*SessionClient]bool
	register   chan *SessionClient
	unregister chan *SessionClient
	broadcast  chan SessionEvent
	done       chan struct{}
}

func NewSessionHub() *SessionHub {
	return &SessionHub{
		sessions:   make(map[uint]map[*SessionClient]bool),
		register:   make(chan *SessionClient),
		unregister: make(chan *SessionClient),
		broadcast:  make(chan SessionEvent, 64),
		done:       make(chan struct{}),
	}
}

func (h *SessionHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.sessions[client.SessionID] == nil {
				h.sessions[client.SessionID] = make(map[*SessionClient]bool)
			}
			h.sessions[client.SessionID][client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.sessions[client.SessionID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.sessions, client.SessionID)
					}
				}
			}
			h.mu.Unlock()
		case event := <-h.broadcast:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			h.mu.RLock()
			for client := range h.sessions[event.SessionID] {
				select {
				case client.Send <- payload:
				default:
					// 发送缓冲已满的慢客户端直接丢弃本条
				}
			}
			h.mu.RUnlock()
		case <-h.done:
			h.mu.Lock()
			for _, clients := range h.sessions {
				for client := range clients {
					close(client.Send)
					client.Conn.Close()
				}
			}
			h.sessions = make(map[uint]map[*SessionClient]bool)
			h.mu.Unlock()
			return
		}
	}
}

func (h *SessionHub) Stop() {
	close(h.done)
}

// Notify 非阻塞投递事件，hub 不可用时直接丢弃
func (h *SessionHub) Notify(event SessionEvent) {
	if h == nil {
		return
	}
	select {
	case h.broadcast <- event:
	default:
	}
}

// ServeWS 升级连接并挂到对应会话分组
func (h *SessionHub) ServeWS(w http.ResponseWriter, r *http.Request, userID, sessionID uint) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := &SessionClient{
		Hub:       h,
		Conn:      conn,
		Send:      make(chan []byte, 16),
		UserID:    userID,
		SessionID: sessionID,
		Limiter:   rate.NewLimiter(30, 50),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
	return nil
}
