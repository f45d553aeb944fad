package ingest

import (
	"context"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"

	"lifehub/internal/db"
	"lifehub/internal/models"
	"lifehub/internal/taskqueue"
	"lifehub/internal/utils"
)

// Ingestor feeds Home Assistant statestream updates into the rule engine.
// Raw MQTT messages are buffered per entity through a Redis stream so a
// chatty sensor only triggers one evaluation per debounce window.
type Ingestor struct {
	mqttClient  mqtt.Client
	redisClient *redis.Client
	db          *db.DB
	stateTopic  string
	stop        chan struct{}
}

// NewIngestor creates an ingestor over the shared clients.
func NewIngestor(mqttClient mqtt.Client, redisClient *redis.Client, dbConn *db.DB, stateTopic string) *Ingestor {
	return &Ingestor{
		mqttClient:  mqttClient,
		redisClient: redisClient,
		db:          dbConn,
		stateTopic:  stateTopic,
		stop:        make(chan struct{}),
	}
}

// Start subscribes to the statestream, rebuilds entity associations and
// begins draining the debounce streams.
func (i *Ingestor) Start() error {
	log.Printf("INGEST: Subscribing to MQTT topic: %s", i.stateTopic)
	if token := i.mqttClient.Subscribe(i.stateTopic, 1, i.onEntityUpdate); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	if err := i.RefreshAssociations(); err != nil {
		log.Printf("INGEST: Error populating entity associations: %v", err)
		return err
	}

	go i.processStreams()
	log.Println("INGEST: Started")
	return nil
}

// Stop halts stream processing. The MQTT connection is owned by main.
func (i *Ingestor) Stop() {
	close(i.stop)
	log.Println("INGEST: Stopped")
}

// onEntityUpdate buffers one raw state update into the entity's stream.
func (i *Ingestor) onEntityUpdate(client mqtt.Client, msg mqtt.Message) {
	entityID := utils.ParseEntityID(msg.Topic())
	if entityID == "" {
		log.Printf("INGEST: Ignoring message on unparseable topic %s", msg.Topic())
		return
	}
	i.redisClient.XAdd(context.Background(), &redis.XAddArgs{
		Stream: utils.EntityStreamPrefix + entityID,
		MaxLen: utils.StreamMaxLen,
		Values: map[string]interface{}{
			"state":     string(msg.Payload()),
			"timestamp": time.Now().UnixNano(),
		},
	})
}

// processStreams drains the per-entity streams, keeping only the newest
// state seen inside each debounce window.
func (i *Ingestor) processStreams() {
	for {
		select {
		case <-i.stop:
			return
		default:
		}

		keys, err := i.redisClient.Keys(context.Background(), utils.EntityStreamPrefix+"*").Result()
		if err != nil {
			log.Printf("INGEST: Error listing streams: %v", err)
			time.Sleep(utils.DebounceWindow)
			continue
		}
		if len(keys) == 0 {
			time.Sleep(utils.DebounceWindow)
			continue
		}

		ids := make([]string, len(keys))
		for n, key := range keys {
			lastID, err := i.redisClient.Get(context.Background(), "last_read:"+key).Result()
			if err != nil {
				lastID = "0-0"
			}
			ids[n] = lastID
		}

		streams, err := i.redisClient.XRead(context.Background(), &redis.XReadArgs{
			Streams: append(keys, ids...),
			Block:   utils.DebounceWindow,
		}).Result()
		if err != nil && err != redis.Nil {
			log.Printf("INGEST: Error reading streams: %v", err)
			continue
		}

		for _, stream := range streams {
			if len(stream.Messages) == 0 {
				continue
			}
			entityID := strings.TrimPrefix(stream.Stream, utils.EntityStreamPrefix)
			latest := stream.Messages[len(stream.Messages)-1]
			state, _ := latest.Values["state"].(string)
			i.processBufferedUpdate(entityID, state)
			i.redisClient.Set(context.Background(), "last_read:"+stream.Stream, latest.ID, 0)
		}
	}
}

// processBufferedUpdate publishes the state transition to every user with a
// rule triggered by this entity.
func (i *Ingestor) processBufferedUpdate(entityID, newState string) {
	ctx := context.Background()

	oldState, _ := i.redisClient.Get(ctx, utils.EntityStatePrefix+entityID).Result()
	if oldState == newState {
		return
	}
	i.redisClient.Set(ctx, utils.EntityStatePrefix+entityID, newState, time.Hour)
	log.Printf("INGEST: Entity %s changed %q -> %q", entityID, oldState, newState)

	userIDs, _ := i.redisClient.SMembers(ctx, utils.EntityUsersPrefix+entityID).Result()
	for _, userID := range userIDs {
		err := taskqueue.EnqueueTrigger(userID, models.TriggerHomeAssistant, map[string]any{
			"entity_id": entityID,
			"old_state": oldState,
			"new_state": newState,
		})
		if err != nil {
			log.Printf("INGEST: Failed to enqueue evaluation for user %s: %v", userID, err)
		}
	}
}

// RefreshAssociations rebuilds the entity-to-user sets from the enabled
// entity-trigger rules. Called at startup and after rule mutations.
func (i *Ingestor) RefreshAssociations() error {
	ctx := context.Background()

	rules, err := i.db.HomeAssistantRules(ctx)
	if err != nil {
		return err
	}

	keys, err := i.redisClient.Keys(ctx, utils.EntityUsersPrefix+"*").Result()
	if err != nil {
		return err
	}
	for _, key := range keys {
		i.redisClient.Del(ctx, key)
	}

	for _, rule := range rules {
		entityID, _ := rule.TriggerConfig["entity_id"].(string)
		if entityID == "" {
			continue
		}
		i.redisClient.SAdd(ctx, utils.EntityUsersPrefix+entityID, rule.OwnerID)
	}
	log.Printf("INGEST: Rebuilt associations for %d entity rules", len(rules))
	return nil
}
