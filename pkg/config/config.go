package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	APIRateLimit  APIRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Realtime      RealtimeConfig
	Planner       PlannerConfig
	Maintenance   MaintenanceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.Realtime.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Planner.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"MEALSHARE_APP_ENV" required:"true"`
	Port         string   `envconfig:"MEALSHARE_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"MEALSHARE_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"MEALSHARE_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"MEALSHARE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"MEALSHARE_CORS_ORIGINS" default:"http://localhost:3000"`

	// TrustProxyHeaders takes the client IP from X-Forwarded-For and friends;
	// enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `envconfig:"MEALSHARE_TRUST_PROXY_HEADERS" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"MEALSHARE_DB_DSN"`
	Driver     string `envconfig:"MEALSHARE_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"MEALSHARE_SQLITE_PATH" default:"mealshare.db"`

	LegacyHost     string `envconfig:"MEALSHARE_DB_HOST"`
	LegacyPort     int    `envconfig:"MEALSHARE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MEALSHARE_DB_USER"`
	LegacyPassword string `envconfig:"MEALSHARE_DB_PASSWORD"`
	LegacyName     string `envconfig:"MEALSHARE_DB_NAME"`
	LegacySSLMode  string `envconfig:"MEALSHARE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MEALSHARE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MEALSHARE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MEALSHARE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MEALSHARE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"MEALSHARE_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MEALSHARE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MEALSHARE_REDIS_ADDR"`
	Password     string        `envconfig:"MEALSHARE_REDIS_PASSWORD"`
	DB           int           `envconfig:"MEALSHARE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MEALSHARE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MEALSHARE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MEALSHARE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MEALSHARE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MEALSHARE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"MEALSHARE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"MEALSHARE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"MEALSHARE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"MEALSHARE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MEALSHARE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MEALSHARE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MEALSHARE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MEALSHARE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MEALSHARE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow       time.Duration `envconfig:"MEALSHARE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginUserLimit    int           `envconfig:"MEALSHARE_AUTH_RATE_LIMIT_LOGIN_USER_LIMIT" default:"5"`
	LoginIPLimit      int           `envconfig:"MEALSHARE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow    time.Duration `envconfig:"MEALSHARE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterUserLimit int           `envconfig:"MEALSHARE_AUTH_RATE_LIMIT_REGISTER_USER_LIMIT" default:"3"`
	RegisterIPLimit   int           `envconfig:"MEALSHARE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type APIRateLimitConfig struct {
	Window    time.Duration `envconfig:"MEALSHARE_API_RATE_LIMIT_WINDOW" default:"1m"`
	UserLimit int           `envconfig:"MEALSHARE_API_RATE_LIMIT_USER_LIMIT" default:"300"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MEALSHARE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MEALSHARE_AUTO_MIGRATE" default:"false"`
}

type RealtimeConfig struct {
	Driver          string        `envconfig:"MEALSHARE_REALTIME_DRIVER" default:"redis"`
	Channel         string        `envconfig:"MEALSHARE_REALTIME_CHANNEL" default:"realtime"`
	ClientBuffer    int           `envconfig:"MEALSHARE_REALTIME_CLIENT_BUFFER" default:"64"`
	WriteTimeout    time.Duration `envconfig:"MEALSHARE_REALTIME_WRITE_TIMEOUT" default:"10s"`
	PingInterval    time.Duration `envconfig:"MEALSHARE_REALTIME_PING_INTERVAL" default:"30s"`
	AllowAnyOrigins bool          `envconfig:"MEALSHARE_REALTIME_ALLOW_ANY_ORIGIN" default:"false"`
}

// UsesRedis reports whether deliveries fan out through Redis pub/sub.
func (r RealtimeConfig) UsesRedis() bool {
	return strings.EqualFold(strings.TrimSpace(r.Driver), RealtimeDriverRedis)
}

func (r RealtimeConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(r.Driver)) {
	case RealtimeDriverRedis, RealtimeDriverLocal:
		return nil
	}
	return fmt.Errorf("%s must be %q or %q", EnvRealtimeDriver, RealtimeDriverRedis, RealtimeDriverLocal)
}

type PlannerConfig struct {
	MultiplierPolicy string `envconfig:"MEALSHARE_MULTIPLIER_POLICY" default:"list_min"`
}

// MaintenanceConfig drives cmd/maintenance-worker.
type MaintenanceConfig struct {
	Interval              time.Duration `envconfig:"MEALSHARE_MAINTENANCE_INTERVAL" default:"6h"`
	LockTTL               time.Duration `envconfig:"MEALSHARE_MAINTENANCE_LOCK_TTL" default:"1h"`
	JobTimeout            time.Duration `envconfig:"MEALSHARE_MAINTENANCE_JOB_TIMEOUT" default:"15m"`
	NotificationRetention time.Duration `envconfig:"MEALSHARE_NOTIFICATION_RETENTION" default:"720h"`
}

func (p PlannerConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(p.MultiplierPolicy)) {
	case MultiplierPolicyListMin, MultiplierPolicyInstance:
		return nil
	}
	return fmt.Errorf("%s must be %q or %q", EnvMultiplierPolicy, MultiplierPolicyListMin, MultiplierPolicyInstance)
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
