package forwarder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"lifehub/internal/models"
	"lifehub/internal/rules"
)

// Forwarder performs the outbound I/O the engine stages instead of doing
// itself: voice/notification announcements and Home Assistant service calls
// go out over MQTT, n8n webhooks over HTTP. Delivery is best effort; the
// engine's action results stay authoritative either way.
type Forwarder struct {
	mqttClient    mqtt.Client
	httpClient    *http.Client
	announceTopic string
	serviceTopic  string
}

// New creates a forwarder publishing on the given topics.
func New(mqttClient mqtt.Client, announceTopic, serviceTopic string) *Forwarder {
	return &Forwarder{
		mqttClient:    mqttClient,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		announceTopic: announceTopic,
		serviceTopic:  serviceTopic,
	}
}

// Deliver pushes every staged action result out its channel. Non-staged
// results were already applied by the engine and are skipped.
func (f *Forwarder) Deliver(userID string, results []models.ActionResult, ectx rules.Context, triggerData map[string]any) {
	for _, res := range results {
		if !res.Success || res.Result == nil {
			continue
		}
		if staged, _ := res.Result["staged"].(bool); !staged {
			continue
		}

		switch res.Type {
		case models.ActionNotify, models.ActionSpeak:
			f.publish(f.announceTopic, map[string]any{
				"user_id":  userID,
				"channel":  res.Type,
				"message":  res.Result["message"],
				"severity": res.Result["severity"],
			})

		case models.ActionHomeAssistant:
			f.publish(f.serviceTopic, map[string]any{
				"domain":       res.Result["domain"],
				"service":      res.Result["service"],
				"entity_id":    res.Result["entity_id"],
				"service_data": res.Result["service_data"],
			})

		case models.ActionN8NWebhook:
			url, _ := res.Result["webhook_url"].(string)
			template, _ := res.Result["payload_template"].(string)
			if err := f.postWebhook(url, template, ectx, triggerData); err != nil {
				log.Printf("FORWARDER: Webhook delivery to %s failed: %v", url, err)
			}
		}
	}
}

func (f *Forwarder) publish(topic string, payload map[string]any) {
	if f.mqttClient == nil {
		log.Printf("FORWARDER: MQTT client not available, dropping message for %s", topic)
		return
	}
	data, _ := json.Marshal(payload)
	f.mqttClient.Publish(topic, 1, false, data)
}

// postWebhook renders the payload template against the same context the
// rule was evaluated with, falling back to the raw trigger data.
func (f *Forwarder) postWebhook(url, template string, ectx rules.Context, triggerData map[string]any) error {
	if url == "" {
		return fmt.Errorf("empty webhook url")
	}

	var body []byte
	if template != "" {
		body = []byte(rules.RenderExplanation(template, ectx, triggerData))
	} else {
		body, _ = json.Marshal(triggerData)
	}

	resp, err := f.httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
