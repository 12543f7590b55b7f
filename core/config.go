package core

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const minBcryptCost = 12

// Config holds the application settings. It is built once at startup and passed down explicitly.
type Config struct {
	Env          string
	AppName      string
	WorkDir      string
	Build        string
	Debug        bool
	TestMode     bool
	SecretKey    string
	RollbarToken string
	BcryptCost   int

	Server struct {
		Host               string
		Address            string
		JWTExpirationDelta time.Duration
		SessionCookie      string
		LoginPath          string
		ReadTimeout        time.Duration
		WriteTimeout       time.Duration
		ShutdownTimeout    time.Duration
	}

	Database struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// Admin is the built-in administrator identity. It has no store row.
	Admin struct {
		ID           string
		Email        string
		Password     string
		PasswordHash string // bcrypt; takes precedence over Password
		FirstName    string
		LastName     string
	}
}

func (c *Config) IsDev() bool { return c.Env == "DEV" || c.Env == "TEST" }

// DatabaseAddress returns the database "host:port".
func (c *Config) DatabaseAddress() string {
	return net.JoinHostPort(c.Database.Host, c.Database.Port)
}

// NewConfig loads the configuration for the environment named by $ENV:
// DEV (local; default), TEST, QA, PROD.
// Values come from defaults, an optional config/.env.<env> file and <ENV>_ prefixed variables.
func NewConfig() (*Config, error) {
	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	wd := os.Getenv("WORKDIR")
	if wd == "" {
		var err error
		if wd, err = os.Getwd(); err != nil {
			return nil, errors.Wrap(err, "getting working directory")
		}
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
	}

	v := viper.New()
	setDefaults(v, env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := &Config{
		Env:          env,
		AppName:      v.GetString("appName"),
		WorkDir:      wd,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		BcryptCost:   v.GetInt("bcryptCost"),
	}

	conf.Server.Host = v.GetString("server.host")
	conf.Server.Address = v.GetString("server.address")
	conf.Server.JWTExpirationDelta = v.GetDuration("server.jwtExpirationDelta")
	conf.Server.SessionCookie = v.GetString("server.sessionCookie")
	conf.Server.LoginPath = v.GetString("server.loginPath")
	conf.Server.ReadTimeout = v.GetDuration("server.readTimeout")
	conf.Server.WriteTimeout = v.GetDuration("server.writeTimeout")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")

	conf.Database.Engine = v.GetString("database.engine")
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetString("database.port")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.AdminUser = v.GetString("database.adminUser")
	conf.Database.AdminPassword = v.GetString("database.adminPassword")
	conf.Database.DisableTLS = v.GetBool("database.disableTLS")

	conf.Admin.ID = v.GetString("admin.id")
	conf.Admin.Email = v.GetString("admin.email")
	conf.Admin.Password = v.GetString("admin.password")
	conf.Admin.PasswordHash = v.GetString("admin.passwordHash")
	conf.Admin.FirstName = v.GetString("admin.firstName")
	conf.Admin.LastName = v.GetString("admin.lastName")

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func setDefaults(v *viper.Viper, env string) {
	dev := env == "DEV" || env == "TEST"

	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "IB DP Assistant")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("bcryptCost", minBcryptCost)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.jwtExpirationDelta", 30*24*time.Hour)
	v.SetDefault("server.sessionCookie", "session")
	v.SetDefault("server.loginPath", "/login")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "ibdp")
	v.SetDefault("database.user", "ibdp")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", dev)

	v.SetDefault("admin.id", "admin-001")
	v.SetDefault("admin.email", "admin@ib-dp-assistant.com")
	v.SetDefault("admin.passwordHash", "")
	v.SetDefault("admin.firstName", "System")
	v.SetDefault("admin.lastName", "Administrator")

	// development only; deployed environments must supply their own secrets
	if dev {
		v.SetDefault("secretKey", "t7k$2xq!l0v9#c3@w8pz&m4yhb(e6)_dn5")
		v.SetDefault("admin.password", "Admin123!@#")
	} else {
		v.SetDefault("secretKey", "")
		v.SetDefault("admin.password", "")
	}
}

// Validate rejects settings that would weaken authentication.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("config: secretKey is required")
	}
	if c.BcryptCost < minBcryptCost && !c.TestMode {
		return fmt.Errorf("config: bcryptCost must be at least %d (got %d)", minBcryptCost, c.BcryptCost)
	}
	if c.Server.JWTExpirationDelta <= 0 {
		return errors.New("config: server.jwtExpirationDelta must be positive")
	}
	return nil
}
