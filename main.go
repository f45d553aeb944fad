package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lifehub/internal/bridge"
	"lifehub/internal/config"
	"lifehub/internal/db"
	"lifehub/internal/forwarder"
	"lifehub/internal/ingest"
	"lifehub/internal/mqtt"
	"lifehub/internal/redis"
	"lifehub/internal/rules"
	"lifehub/internal/scheduler"
	"lifehub/internal/taskqueue"
	"lifehub/internal/utils"
	"lifehub/internal/web"

	"github.com/pion/mdns/v2"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// ruleHooks fans rule mutations out to the subsystems that cache rule
// state: the ingestor's entity associations and the cron schedule.
type ruleHooks struct {
	ingestor *ingest.Ingestor
	sched    *scheduler.Scheduler
}

func (h *ruleHooks) RefreshAssociations() error {
	return h.ingestor.RefreshAssociations()
}

func (h *ruleHooks) ReloadScheduleRules() error {
	return h.sched.ReloadScheduleRules()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	utils.InitLogging(cfg.LogLevel)

	dbConn, err := db.NewDB(cfg.DBURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer dbConn.Close(context.Background())

	redisClient := redis.NewRedisClient(cfg.RedisAddr)

	mqttClient, err := mqtt.NewMQTTClient(cfg.MQTTBroker, cfg.MQTTClientID)
	if err != nil {
		log.Fatalf("Failed to connect to MQTT: %v", err)
	}

	engine := rules.NewEngine(dbConn)
	fwd := forwarder.New(mqttClient, cfg.AnnounceTopic, cfg.ServiceTopic)

	taskqueue.SetGlobalInstances(dbConn, redisClient, engine, fwd)

	taskqueue.StartWorkers(cfg.RedisAddr)

	sched := scheduler.NewScheduler(dbConn)
	sched.Start()
	if err := sched.LoadScheduleRules(); err != nil {
		log.Printf("SCHEDULER: Failed to load schedule rules: %v", err)
	}

	ingestor := ingest.NewIngestor(mqttClient, redisClient, dbConn, cfg.StateTopic)
	if err := ingestor.Start(); err != nil {
		log.Fatalf("Failed to start ingestor: %v", err)
	}

	webServer := web.NewWebServer(dbConn, cfg.JWTSecret, &ruleHooks{
		ingestor: ingestor,
		sched:    sched,
	})
	go webServer.Start(fmt.Sprintf(":%d", cfg.Port))

	go startMDNSServer(cfg.MDNSLocalName)

	if cfg.RemoteEnabled {
		go bridge.Start(bridge.Config{
			PublicWS:   cfg.RemotePublicWS,
			LocalURL:   fmt.Sprintf("http://127.0.0.1:%d", cfg.Port),
			AgentID:    cfg.AgentID,
			RetryDelay: time.Duration(cfg.RemoteRetrySec) * time.Second,
		})
	} else {
		log.Println("Remote access bridge is disabled")
	}

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	ingestor.Stop()
	sched.Stop()
	taskqueue.StopWorkers()
	log.Println("Shutdown complete")
}

func startMDNSServer(localName string) {
	addr4, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		log.Println("Failed to resolve UDP4 address for mDNS:", err)
		return
	}

	addr6, err := net.ResolveUDPAddr("udp6", mdns.DefaultAddressIPv6)
	if err != nil {
		log.Println("Failed to resolve UDP6 address for mDNS:", err)
		return
	}

	l4, err := net.ListenUDP("udp4", addr4)
	if err != nil {
		log.Println("Failed to listen on UDP4 for mDNS:", err)
		return
	}

	l6, err := net.ListenUDP("udp6", addr6)
	if err != nil {
		log.Println("Failed to listen on UDP6 for mDNS:", err)
		return
	}

	_, err = mdns.Server(ipv4.NewPacketConn(l4), ipv6.NewPacketConn(l6), &mdns.Config{
		LocalNames: []string{localName},
	})
	if err != nil {
		log.Println("Failed to start mDNS server:", err)
	}
}
