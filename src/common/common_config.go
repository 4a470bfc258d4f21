package common

type CommonConfig struct {
	QueryPort       string `yaml:"query_port"`
	AdminPort       string `yaml:"admin_port"`
	PromPort        string `yaml:"prom_port"`
	HealthCheckPort string `yaml:"health_check_port"`
	PostgresConfig  string `yaml:"postgres"`
	RedisConfig     string `yaml:"redis"`
}
