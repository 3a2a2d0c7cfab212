package redis

type RedisConfig struct {
	// host:port address.
	Host     string `json:"host" yaml:"host" toml:"host"`
	Password string `json:"password" yaml:"password" toml:"password"`
	// Database to be selected after connecting to the server.
	Db int `json:"db" yaml:"db" toml:"db"`
	// Maximum number of socket connections.
	PoolSize int `json:"pool_size" yaml:"poolSize" toml:"pool_size"`
	// Maximum number of retries before giving up.
	// Default is 3 retries; -1 (not 0) disables retries.
	MaxRetries int `json:"max_retries" yaml:"maxRetries" toml:"max_retries"`
	// Connection age at which client retires (closes) the connection.
	MaxConnAge int64 `json:"max_conn_age" yaml:"maxConnAge" toml:"max_conn_age"`
	// Dial timeout for establishing new connections.
	DialTimeout int64 `json:"dial_timeout" yaml:"dialTimeout" toml:"dial_timeout"`
	// Timeout for socket reads.
	ReadTimeout int64 `json:"read_timeout" yaml:"readTimeout" toml:"read_timeout"`
	// Timeout for socket writes.
	WriteTimeout int64 `json:"write_timeout" yaml:"writeTimeout" toml:"write_timeout"`
	// Minimum number of idle connections.
	MinIdleConns int `json:"min_idle_conns" yaml:"minIdleConns" toml:"min_idle_conns"`
	// Amount of time client waits for connection if all connections are busy.
	PoolTimeout int64 `json:"pool_timeout" yaml:"poolTimeout" toml:"pool_timeout"`
	// Amount of time after which client closes idle connections.
	IdleTimeout int64 `json:"idle_timeout" yaml:"idleTimeout" toml:"idle_timeout"`
}

func (rc *RedisConfig) DefaultConfig() {
	if rc.PoolSize == 0 {
		rc.PoolSize = 100
	}
	if rc.MaxRetries == 0 {
		rc.MaxRetries = 3
	}
	if rc.DialTimeout == 0 {
		rc.DialTimeout = 30
	}
	if rc.ReadTimeout == 0 {
		rc.ReadTimeout = 3
	}
	if rc.WriteTimeout == 0 {
		rc.WriteTimeout = 3
	}
	if rc.MinIdleConns == 0 {
		rc.MinIdleConns = 10
	}
	if rc.PoolTimeout == 0 {
		rc.PoolTimeout = 4
	}
	if rc.IdleTimeout == 0 {
		rc.IdleTimeout = 300
	}
	if rc.MaxConnAge == 0 {
		rc.MaxConnAge = 30
	}
}
