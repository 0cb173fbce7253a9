package config

import (
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 汇总了一个服务进程需要的全部外部依赖配置。
// 优先级：代码内默认值 < YAML 文件 < FIELDOPS_* 环境变量。
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Infra   InfraConfig   `yaml:"infra"`
	Order   OrderConfig   `yaml:"order"`
}

type ServiceConfig struct {
	Name string `yaml:"name" envconfig:"SERVICE_NAME"`
	Port int    `yaml:"port" envconfig:"SERVICE_PORT"`
}

type InfraConfig struct {
	MySQL  MySQLConfig  `yaml:"mysql"`
	Redis  RedisConfig  `yaml:"redis"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	Nacos  NacosConfig  `yaml:"nacos"`
	Jaeger JaegerConfig `yaml:"jaeger"`
}

type MySQLConfig struct {
	DSN string `yaml:"dsn" envconfig:"MYSQL_DSN"`
}

type RedisConfig struct {
	Addrs    []string `yaml:"addrs" envconfig:"REDIS_ADDRS"`
	Password string   `yaml:"password" envconfig:"REDIS_PASSWORD"`
}

type KafkaConfig struct {
	Brokers        []string `yaml:"brokers" envconfig:"KAFKA_BROKERS"`
	LifecycleTopic string   `yaml:"lifecycle_topic" envconfig:"KAFKA_LIFECYCLE_TOPIC"`
}

type NacosConfig struct {
	ServerAddrs []string `yaml:"server_addrs" envconfig:"NACOS_SERVER_ADDRS"`
	Namespace   string   `yaml:"namespace" envconfig:"NACOS_NAMESPACE"`
	Group       string   `yaml:"group" envconfig:"NACOS_GROUP"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint" envconfig:"JAEGER_ENDPOINT"`
}

// OrderConfig 是生命周期引擎本身的调优参数。
type OrderConfig struct {
	AssignLockTTL    time.Duration `yaml:"assign_lock_ttl" envconfig:"ASSIGN_LOCK_TTL"`
	MaxSyncBatchSize int           `yaml:"max_sync_batch_size" envconfig:"MAX_SYNC_BATCH_SIZE"`
}

func defaults() *Config {
	return &Config{
		Service: ServiceConfig{Port: 8080},
		Infra: InfraConfig{
			Kafka: KafkaConfig{LifecycleTopic: "order-lifecycle-events"},
			Nacos: NacosConfig{Group: "DEFAULT_GROUP"},
		},
		Order: OrderConfig{
			AssignLockTTL:    3 * time.Second,
			MaxSyncBatchSize: 100,
		},
	}
}

// Load 从 path 读取 YAML（path 为空或文件不存在时只用默认值），
// 然后应用 FIELDOPS_* 环境变量覆盖。
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config file %s", path)
			}
		}
	}

	if err := envconfig.Process("fieldops", cfg); err != nil {
		return nil, errors.Wrap(err, "process env overrides")
	}
	return cfg, nil
}
