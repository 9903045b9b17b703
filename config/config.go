package config

import "time"

type Config struct {
	Web      Web
	DB       DB
	Session  Session
	Cors     Cors
	Auth     Auth
	Oauth    Oauth
	Razorpay Razorpay
	Redis    Redis
	Kafka    Kafka
	Rate     Rate
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User         string `conf:"default:postgres"`
	Password     string `conf:"default:postgres,mask"`
	Host         string `conf:"default:localhost:5432"`
	Name         string `conf:"default:storefront"`
	MaxIdleConns int    `conf:"default:5"`
	MaxOpenConns int    `conf:"default:25"`
	DisableTLS   bool   `conf:"default:true"`
	Migrate      bool   `conf:"default:true"`
}

type Session struct {
	Lifetime time.Duration `conf:"default:24h"`
	Secure   bool          `conf:"default:false"`
}

type Cors struct {
	Origin string
}

type Auth struct {
	AdminEmail string
}

type Oauth struct {
	DiscoveryTimeout time.Duration `conf:"default:10s"`
	LoginRedirectURL string        `conf:"default:/"`
	Google           OauthProvider
}

type OauthProvider struct {
	Client      string
	Secret      string `conf:"mask"`
	URL         string `conf:"default:https://accounts.google.com"`
	RedirectURL string
}

// Razorpay credentials are optional at startup; the payment endpoints report
// a misconfiguration per request when one is missing.
type Razorpay struct {
	KeyID         string
	KeySecret     string `conf:"mask"`
	WebhookSecret string `conf:"mask"`
	Currency      string `conf:"default:INR"`
	SuccessPath   string `conf:"default:/success"`
}

type Redis struct {
	Addr      string
	Password  string        `conf:"mask"`
	DB        int           `conf:"default:0"`
	EventTTL  time.Duration `conf:"default:72h"`
	KeyPrefix string        `conf:"default:storefront:webhook:"`
}

type Kafka struct {
	Brokers []string
	Topic   string `conf:"default:entitlements"`
}

type Rate struct {
	Burst  int           `conf:"default:10"`
	Every  time.Duration `conf:"default:1s"`
	Expiry time.Duration `conf:"default:10m"`
}
