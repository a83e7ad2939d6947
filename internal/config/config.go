package config

import (
	"errors"
	"strings"
	"time"

	"github.com/indieauthify/indieauthify/params"
	"github.com/spf13/viper"
)

const (
	DefaultListenAddr   = ":3000"
	DefaultAppName      = "IndieAuthify"
	DefaultCookieMaxAge = 7 * 24 * time.Hour
	DefaultCookieName   = "indieauthify_session"
	DefaultSQLitePath   = "./tokens.db"
	DriverSQLite        = "sqlite"
	DriverMySQL         = "mysql"
)

var (
	ErrMissingMe         = errors.New("config: me is required")
	ErrMissingSigningKey = errors.New("config: signingKey is required")
	ErrUnknownDriver     = errors.New("config: unknown database driver")
	ErrMissingMailTo     = errors.New("config: mail.to is required when mail.host is set")
)

type MySQLConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	ConnMaxIdleTime time.Duration `yaml:"connMaxIdleTime"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

type DatabaseConfig struct {
	Driver string      `yaml:"driver"`
	Path   string      `yaml:"path"`
	MySQL  MySQLConfig `yaml:"mysql"`
}

type SessionConfig struct {
	SessionMaxAge  time.Duration `yaml:"sessionMaxAge"`
	CookieName     string        `yaml:"cookieName"`
	CookieHttpOnly bool          `yaml:"cookieHttpOnly"`
	CookieSecure   bool          `yaml:"cookieSecure"`
}

type OAuthProviderConfig struct {
	ClientID     string   `yaml:"clientID"`
	ClientSecret string   `yaml:"clientSecret"`
	RedirectURL  string   `yaml:"redirectURL"`
	Scope        []string `yaml:"scope"`
}

type WebhookConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"apiKey"`
}

type MailConfig struct {
	Host               string   `yaml:"host"`
	Port               int      `yaml:"port"`
	Username           string   `yaml:"username"`
	Password           string   `yaml:"password"`
	From               string   `yaml:"from"`
	To                 []string `yaml:"to"`
	InsecureSkipVerify bool     `yaml:"insecureSkipVerify"`
}

type Config struct {
	Debug       bool                `yaml:"debug"`
	AppName     string              `yaml:"appName"`
	BaseURL     string              `yaml:"baseURL"`
	ListenAddr  string              `yaml:"listenAddr"`
	TemplateDir string              `yaml:"templateDir"`
	Me          string              `yaml:"me"`
	SigningKey  string              `yaml:"signingKey"`
	APIKeyHash  string              `yaml:"apiKeyHash"`
	RPCTimeout  time.Duration       `yaml:"rpcTimeout"`
	RedisURL    string              `yaml:"redisURL"`
	Session     SessionConfig       `yaml:"session"`
	Database    DatabaseConfig      `yaml:"database"`
	Webhook     WebhookConfig       `yaml:"webhook"`
	Mail        MailConfig          `yaml:"mail"`
	GitHub      OAuthProviderConfig `yaml:"github"`
}

func (c *Config) Sanitize() error {
	if c.Me == "" {
		return ErrMissingMe
	}
	if c.SigningKey == "" {
		return ErrMissingSigningKey
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.AppName == "" {
		c.AppName = DefaultAppName
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.RPCTimeout == 0 {
		c.RPCTimeout = params.DefaultRPCTimeout
	}
	if c.Session.SessionMaxAge == 0 {
		c.Session.SessionMaxAge = DefaultCookieMaxAge
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = DefaultCookieName
	}

	if c.Mail.Host != "" {
		if len(c.Mail.To) == 0 {
			return ErrMissingMailTo
		}
		if c.Mail.Port == 0 {
			c.Mail.Port = 587
		}
		if c.Mail.From == "" {
			c.Mail.From = c.Mail.To[0]
		}
	}

	switch c.Database.Driver {
	case "":
		c.Database.Driver = DriverSQLite
		fallthrough
	case DriverSQLite:
		if c.Database.Path == "" {
			c.Database.Path = DefaultSQLitePath
		}
	case DriverMySQL:
		if c.Database.MySQL.Port == 0 {
			c.Database.MySQL.Port = 3306
		}
	default:
		return ErrUnknownDriver
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	viper.SetConfigFile(filename)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
