package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Public relay for remote access. Home agents dial /agent over WebSocket
// and register; dashboard clients hit any other path with X-Agent-ID and
// the relay tunnels the request to the matching agent.

type Agent struct {
	ID  string
	WS  *websocket.Conn
	Mux sync.Mutex
}

var agents = map[string]*Agent{}
var agentsMux sync.Mutex

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type RequestMsg struct {
	Type    string            `json:"type"`
	ReqId   string            `json:"reqId"`
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers"`
	Body    interface{}       `json:"body"`
}

type ResponseMsg struct {
	Type   string      `json:"type"`
	ReqId  string      `json:"reqId"`
	Status int         `json:"status"`
	Body   interface{} `json:"body"`
}

var pending = struct {
	m   map[string]chan ResponseMsg
	mux sync.Mutex
}{m: map[string]chan ResponseMsg{}}

func main() {
	addr := os.Getenv("RELAY_ADDR")
	if addr == "" {
		addr = ":5069"
	}

	r := gin.Default()

	r.GET("/agent", handleAgentWS)
	r.NoRoute(handleClientRequest)

	log.Printf("RELAY: Listening on %s", addr)
	r.Run(addr)
}

func handleAgentWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	var agentID string

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if agentID != "" {
				agentsMux.Lock()
				delete(agents, agentID)
				agentsMux.Unlock()
				log.Printf("RELAY: Agent %s disconnected", agentID)
			}
			return
		}

		var data map[string]interface{}
		json.Unmarshal(msg, &data)

		switch data["type"] {
		case "register":
			agentID, _ = data["id"].(string)
			if agentID == "" {
				continue
			}
			log.Printf("RELAY: Agent %s registered", agentID)

			agentsMux.Lock()
			agents[agentID] = &Agent{ID: agentID, WS: ws}
			agentsMux.Unlock()

		case "response":
			reqId, _ := data["reqId"].(string)
			status, _ := data["status"].(float64)

			pending.mux.Lock()
			ch, ok := pending.m[reqId]
			if ok {
				ch <- ResponseMsg{
					Type:   "response",
					ReqId:  reqId,
					Status: int(status),
					Body:   data["body"],
				}
				delete(pending.m, reqId)
			}
			pending.mux.Unlock()
		}
	}
}

func handleClientRequest(c *gin.Context) {
	agentID := c.GetHeader("X-Agent-ID")
	if agentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing X-Agent-ID"})
		return
	}

	agentsMux.Lock()
	agent, ok := agents[agentID]
	agentsMux.Unlock()

	if !ok {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Agent offline"})
		return
	}

	var body interface{}
	c.ShouldBindJSON(&body) // no body is fine for GET/DELETE

	headers := make(map[string]string)
	for key, values := range c.Request.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	reqId := uuid.New().String()

	msg := RequestMsg{
		Type:    "request",
		ReqId:   reqId,
		Method:  c.Request.Method,
		Path:    c.Request.URL.Path,
		Headers: headers,
		Body:    body,
	}

	data, _ := json.Marshal(msg)

	// Register the response channel before writing so a fast agent
	// cannot answer into a missing slot.
	respChan := make(chan ResponseMsg, 1)
	pending.mux.Lock()
	pending.m[reqId] = respChan
	pending.mux.Unlock()

	agent.Mux.Lock()
	err := agent.WS.WriteMessage(websocket.TextMessage, data)
	agent.Mux.Unlock()
	if err != nil {
		pending.mux.Lock()
		delete(pending.m, reqId)
		pending.mux.Unlock()
		c.JSON(http.StatusBadGateway, gin.H{"error": "Agent unreachable"})
		return
	}

	select {
	case resp := <-respChan:
		c.JSON(resp.Status, resp.Body)

	case <-time.After(10 * time.Second):
		pending.mux.Lock()
		delete(pending.m, reqId)
		pending.mux.Unlock()
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Timeout"})
	}
}
