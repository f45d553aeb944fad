package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	DBURL          string `mapstructure:"DB_URL"`
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	MQTTBroker     string `mapstructure:"MQTT_BROKER"`
	MQTTClientID   string `mapstructure:"MQTT_CLIENT_ID"`
	StateTopic     string `mapstructure:"STATE_TOPIC"`
	AnnounceTopic  string `mapstructure:"ANNOUNCE_TOPIC"`
	ServiceTopic   string `mapstructure:"SERVICE_TOPIC"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	AgentID        string `mapstructure:"AGENT_ID"`
	Port           int    `mapstructure:"PORT"`
	MDNSLocalName  string `mapstructure:"MDNS_LOCAL_NAME"`
	RemoteEnabled  bool   `mapstructure:"REMOTE_ENABLED"`
	RemotePublicWS string `mapstructure:"REMOTE_PUBLIC_WS"`
	RemoteRetrySec int    `mapstructure:"REMOTE_RETRY_SECS"`
}

// LoadConfig reads configuration from file, .env, or env vars
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		log.Printf("No config file loaded: %v", err)
	}

	viper.SetDefault("STATE_TOPIC", "lifehub/statestream/#")
	viper.SetDefault("ANNOUNCE_TOPIC", "lifehub/announce")
	viper.SetDefault("SERVICE_TOPIC", "lifehub/service_call")
	viper.SetDefault("PORT", 5069)
	viper.SetDefault("MDNS_LOCAL_NAME", "lifehub.local")
	viper.SetDefault("REMOTE_RETRY_SECS", 2)

	cfg := &Config{
		DBURL:          viper.GetString("DB_URL"),
		RedisAddr:      viper.GetString("REDIS_ADDR"),
		MQTTBroker:     viper.GetString("MQTT_BROKER"),
		MQTTClientID:   viper.GetString("MQTT_CLIENT_ID"),
		StateTopic:     viper.GetString("STATE_TOPIC"),
		AnnounceTopic:  viper.GetString("ANNOUNCE_TOPIC"),
		ServiceTopic:   viper.GetString("SERVICE_TOPIC"),
		LogLevel:       viper.GetString("LOG_LEVEL"),
		JWTSecret:      viper.GetString("JWT_SECRET"),
		AgentID:        viper.GetString("AGENT_ID"),
		Port:           viper.GetInt("PORT"),
		MDNSLocalName:  viper.GetString("MDNS_LOCAL_NAME"),
		RemoteEnabled:  viper.GetBool("REMOTE_ENABLED"),
		RemotePublicWS: viper.GetString("REMOTE_PUBLIC_WS"),
		RemoteRetrySec: viper.GetInt("REMOTE_RETRY_SECS"),
	}
	return cfg, nil
}
