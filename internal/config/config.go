// Package config загружает документ конфигурации брокера (rabbitmq.yaml).
//
// Документ общий для core, sandbox-анализатора и этого consumer'а.
// Отсутствие обязательного ключа — фатальная ошибка при старте.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"gopkg.in/yaml.v3"
)

// FileName — имя документа внутри config dir.
const FileName = "rabbitmq.yaml"

// Значения по умолчанию.
const (
	defaultHost  = "rabbitmq"
	defaultPort  = 5672
	defaultVhost = "/"
)

// ErrMissingKey — в документе нет обязательного ключа.
var ErrMissingKey = errors.New("missing required configuration key")

// Config — конфигурация брокера.
type Config struct {
	Connection Connection `yaml:"connection"`
	Queues     Queues     `yaml:"queues"`
	Exchanges  Exchanges  `yaml:"exchanges"`
}

// Connection — параметры подключения.
type Connection struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Vhost    string `yaml:"vhost"`
}

// Queue — описание очереди.
//
// Ключи durable и auto_delete документа игнорируются: очередь файлов
// всегда объявляется durable и auto-delete.
type Queue struct {
	Name string `yaml:"name"`
}

// Queues — очереди системы.
type Queues struct {
	// CoreFilesQueue — очередь, из которой consumer получает файлы.
	CoreFilesQueue Queue `yaml:"core_files_queue"`

	// SandboxIOCsQueue — очередь, в которую анализатор публикует события.
	// Consumer её не использует, но документ общий.
	SandboxIOCsQueue Queue `yaml:"sandbox_iocs_queue"`
}

// Exchange — описание обменника.
type Exchange struct {
	Name string `yaml:"name"`
}

// Exchanges — обменники системы.
type Exchanges struct {
	MainExchange Exchange `yaml:"main_exchange"`
}

// Load читает <dir>/rabbitmq.yaml.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return Parse(data)
}

// Parse разбирает документ, применяет значения по умолчанию и проверяет
// обязательные ключи.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Connection.Host == "" {
		c.Connection.Host = defaultHost
	}
	if c.Connection.Port == 0 {
		c.Connection.Port = defaultPort
	}
	if c.Connection.Vhost == "" {
		c.Connection.Vhost = defaultVhost
	}
}

// Validate проверяет наличие обязательных ключей.
// Возвращает все отсутствующие ключи одной ошибкой.
func (c *Config) Validate() error {
	var missing []string

	if c.Connection.Username == "" {
		missing = append(missing, "connection.username")
	}
	if c.Connection.Password == "" {
		missing = append(missing, "connection.password")
	}
	if c.Exchanges.MainExchange.Name == "" {
		missing = append(missing, "exchanges.main_exchange.name")
	}
	if c.Queues.CoreFilesQueue.Name == "" {
		missing = append(missing, "queues.core_files_queue.name")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingKey, strings.Join(missing, ", "))
	}
	return nil
}

// URL возвращает AMQP URL для подключения.
func (c *Config) URL() string {
	uri := amqp.URI{
		Scheme:   "amqp",
		Host:     c.Connection.Host,
		Port:     c.Connection.Port,
		Username: c.Connection.Username,
		Password: c.Connection.Password,
		Vhost:    c.Connection.Vhost,
	}
	return uri.String()
}

// Addr возвращает host:port без учётных данных (для логов).
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Connection.Host, strconv.Itoa(c.Connection.Port))
}
