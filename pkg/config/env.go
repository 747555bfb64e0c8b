package config

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = "MEALSHARE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	RealtimeDriverRedis = "redis"
	RealtimeDriverLocal = "local"
)

const (
	MultiplierPolicyListMin  = "list_min"
	MultiplierPolicyInstance = "instance"
)

const (
	EnvAppEnv                 = "MEALSHARE_APP_ENV"
	EnvPort                   = "MEALSHARE_APP_PORT"
	EnvDBDSN                  = "MEALSHARE_DB_DSN"
	EnvDBHost                 = "MEALSHARE_DB_HOST"
	EnvDBUser                 = "MEALSHARE_DB_USER"
	EnvDBName                 = "MEALSHARE_DB_NAME"
	EnvRedisURL               = "MEALSHARE_REDIS_URL"
	EnvJWTSecret              = "MEALSHARE_JWT_SECRET"
	EnvJWTIssuer              = "MEALSHARE_JWT_ISSUER"
	EnvJWTExpMins             = "MEALSHARE_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "MEALSHARE_REFRESH_TOKEN_TTL_MINUTES"
	EnvUseSQLite              = "MEALSHARE_USE_SQLITE"
	EnvRealtimeDriver         = "MEALSHARE_REALTIME_DRIVER"
	EnvMultiplierPolicy       = "MEALSHARE_MULTIPLIER_POLICY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
