package config

// EnvPrefix is empty because every variable carries the full THEMEBOARD_
// prefix in its envconfig tag.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "THEMEBOARD_DB_DSN"
	EnvDBHost = "THEMEBOARD_DB_HOST"
	EnvDBUser = "THEMEBOARD_DB_USER"
	EnvDBName = "THEMEBOARD_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
