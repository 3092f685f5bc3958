package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	// Config holds all the settings for the running app.
	// Values are resolved (in increasing priority) from defaults, an optional
	// config/.env.<env> file and environment variables prefixed with <ENV>_.
	Config struct {
		Debug            bool
		TestMode         bool
		Env              string
		Build            string
		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridAPIKey   string
		RollbarToken     string

		Server      ServerConfig
		Database    DatabaseConfig
		Chat        ChatConfig
		Attachments AttachmentsConfig
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// ChatConfig carries the messaging subsystem knobs: how many messages the
	// initial fetch installs, the incremental polling window and cadence, and
	// the presence heartbeat cadence.
	ChatConfig struct {
		InitialFetchLimit int
		PollLimit         int
		PollInterval      time.Duration
		HeartbeatInterval time.Duration
	}

	AttachmentsConfig struct {
		Bucket  string
		Region  string
		BaseURL string
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

// NewConfig loads the app configuration. It dies on a malformed .env file or
// un-unmarshalable settings; there is no running without config.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Darasa")
	v.SetDefault("secretKey", "z#&53=+b$q0m(tfy9^jp-w&2c!x_8ke7u)d4%vrh1ns6ag5lo")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridAPIKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":9000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.JWTExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.JWTRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.name", "darasa")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "darasa")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("chat.initialFetchLimit", 50)
	v.SetDefault("chat.pollLimit", 10)
	v.SetDefault("chat.pollInterval", 3*time.Second)
	v.SetDefault("chat.heartbeatInterval", 30*time.Second)

	// empty bucket means attachments are stored in memory (local dev)
	v.SetDefault("attachments.bucket", "")
	v.SetDefault("attachments.region", "eu-west-1")
	v.SetDefault("attachments.baseURL", "")

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{Env: env}
	if err := v.Unmarshal(conf); err != nil {
		log.Fatalf("config.Unmarshal: %v", err)
	}
	conf.DefaultFromEmail = mail.Address{Name: conf.AppName, Address: v.GetString("defaultFromEmail")}
	return conf
}

// Getwd finds the project root by walking up from the working directory until
// go.mod is found. go-test changes the working directory to the package being
// run, which would otherwise break relative paths.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err = os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd // fall back to the raw working directory
		}
		currDir = newDir
	}
}
