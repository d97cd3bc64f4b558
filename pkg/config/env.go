package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "STOREFRONT_APP_ENV"
	EnvPort   = "STOREFRONT_APP_PORT"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL  = "STOREFRONT_REDIS_URL"
	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"
	EnvUseSQLite = "STOREFRONT_USE_SQLITE"

	EnvFreeDeliveryThreshold = "STOREFRONT_FREE_DELIVERY_THRESHOLD"
	EnvStandardDeliveryPct   = "STOREFRONT_STANDARD_DELIVERY_PERCENTAGE"
	EnvCurrency              = "STOREFRONT_CURRENCY"

	EnvReconcileAttempts = "STOREFRONT_WEBHOOK_RECONCILE_ATTEMPTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
