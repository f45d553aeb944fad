package bridge

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Config for the remote-access agent: it dials the public relay and proxies
// authenticated dashboard requests to the local API, so the home instance
// needs no inbound port.
type Config struct {
	PublicWS   string // ws://host:port/agent
	LocalURL   string // http://127.0.0.1:5069
	AgentID    string
	RetryDelay time.Duration
}

type requestMsg struct {
	Type    string            `json:"type"`
	ReqId   string            `json:"reqId"`
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers"`
	Body    interface{}       `json:"body"`
}

type responseMsg struct {
	Type   string      `json:"type"`
	ReqId  string      `json:"reqId"`
	Status int         `json:"status"`
	Body   interface{} `json:"body"`
}

// Start runs the agent loop, reconnecting after any drop.
func Start(cfg Config) {
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	for {
		run(cfg)
		log.Println("BRIDGE: Disconnected from relay, reconnecting...")
		time.Sleep(cfg.RetryDelay)
	}
}

func run(cfg Config) {
	ws, _, err := websocket.DefaultDialer.Dial(cfg.PublicWS, nil)
	if err != nil {
		log.Printf("BRIDGE: WebSocket error: %v", err)
		return
	}
	defer ws.Close()

	ws.WriteJSON(map[string]interface{}{
		"type": "register",
		"id":   cfg.AgentID,
	})
	log.Printf("BRIDGE: Registered agent %s with relay", cfg.AgentID)

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var req requestMsg
		json.Unmarshal(msg, &req)

		if req.Type != "request" {
			continue
		}

		respBody, status := doLocalRequest(cfg.LocalURL, req)

		ws.WriteJSON(responseMsg{
			Type:   "response",
			ReqId:  req.ReqId,
			Status: status,
			Body:   respBody,
		})
	}
}

// doLocalRequest replays one relayed request against the local API,
// forwarding the caller's headers so auth still happens locally.
func doLocalRequest(base string, req requestMsg) (interface{}, int) {
	bodyBytes, _ := json.Marshal(req.Body)

	httpReq, err := http.NewRequest(req.Method, base+req.Path, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return "invalid relayed request", 400
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Do(httpReq)
	if err != nil {
		return "local request failed", 500
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	var parsed interface{}
	json.Unmarshal(raw, &parsed)

	return parsed, resp.StatusCode
}
