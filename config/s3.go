package config

type S3 struct {
	AccessKey    string `yaml:"s3_access_key" env:"S3_ACCESS_KEY" env-default:""`
	SecretKey    string `yaml:"s3_secret_key" env:"S3_SECRET_KEY" env-default:""`
	Region       string `yaml:"s3_region" env:"S3_REGION" env-default:""`
	EndPoint     string `yaml:"s3_endpoint" env:"S3_ENDPOINT" env-default:""`
	Bucket       string `yaml:"s3_bucket" env:"S3_BUCKET" env-default:""`
	UsePathStyle bool   `yaml:"s3_use_path_style" env:"S3_USE_PATH_STYLE" env-default:"false"`
	CacheTime    int64  `yaml:"s3_cache_time" env:"S3_CACHE_TIME" env-default:"-1"`
}

// Stream controls how objects are pulled from S3.
type Stream struct {
	ChunkSize  int64 `yaml:"chunk_size" env:"STREAM_CHUNK_SIZE" env-default:"1048576" env-description:"maximum size of one ranged GET"`
	Retries    int   `yaml:"retries" env:"STREAM_RETRIES" env-default:"3" env-description:"body read failures tolerated per object"`
	BufferSize int   `yaml:"buffer_size" env:"STREAM_BUFFER_SIZE" env-default:"100000" env-description:"consumer buffer size"`
}

// Copy controls the multipart re-upload of a streamed object.
type Copy struct {
	Bucket   string `yaml:"bucket" env:"COPY_BUCKET" env-default:""`
	PartSize int64  `yaml:"part_size" env:"COPY_PART_SIZE" env-default:"5242880"`
}
