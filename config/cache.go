package config

type CacheController struct {
	Activated bool `yaml:"activated" env:"CACHE_CONTROLLER_ACTIVATED" env-default:"false"`
	MaxAge    int  `yaml:"max_age" env:"CACHE_CONTROLLER_MAX_AGE" env-default:"3600"`
}

// Cache holds object sizes learned from HEAD requests so the server does
// not probe the same object on every request.
type Cache struct {
	Activated bool  `yaml:"activated" env:"CACHE_ACTIVATED" env-default:"false"`
	Time      int64 `yaml:"time" env:"CACHE_TIME" env-default:"3600"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}
