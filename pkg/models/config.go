package models

// DatabaseConfig describes the Postgres cluster holding devices, the audit
// trail, and the event store.
type DatabaseConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	Database        string `json:"database"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	SSLMode         string `json:"ssl_mode"`
	MaxConnections  int32  `json:"max_connections"`
	MinConnections  int32  `json:"min_connections"`
	ApplicationName string `json:"application_name"`
}

// RedisConfig describes the read cache.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}
