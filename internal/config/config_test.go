package config

import (
	"os"
	"path/filepath"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullDoc = `
connection:
  host: broker.local
  port: 5673
  username: ruser
  password: rpassword
queues:
  core_files_queue:
    name: malsmug.files_for_analysis
    durable: true
    auto_delete: false
  sandbox_iocs_queue:
    name: malsmug.sandbox_iocs
exchanges:
  main_exchange:
    name: malsmug.analysis
`

func TestParse_Full(t *testing.T) {
	cfg, err := Parse([]byte(fullDoc))
	require.NoError(t, err)

	assert.Equal(t, "broker.local", cfg.Connection.Host)
	assert.Equal(t, 5673, cfg.Connection.Port)
	assert.Equal(t, "malsmug.files_for_analysis", cfg.Queues.CoreFilesQueue.Name)
	assert.Equal(t, "malsmug.analysis", cfg.Exchanges.MainExchange.Name)
	assert.Equal(t, "broker.local:5673", cfg.Addr())

	uri, err := amqp.ParseURI(cfg.URL())
	require.NoError(t, err)
	assert.Equal(t, "broker.local", uri.Host)
	assert.Equal(t, 5673, uri.Port)
	assert.Equal(t, "ruser", uri.Username)
	assert.Equal(t, "rpassword", uri.Password)
}

func TestParse_Defaults(t *testing.T) {
	doc := `
connection:
  username: u
  password: p
queues:
  core_files_queue:
    name: q
exchanges:
  main_exchange:
    name: x
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, defaultHost, cfg.Connection.Host)
	assert.Equal(t, defaultPort, cfg.Connection.Port)
	assert.Equal(t, defaultVhost, cfg.Connection.Vhost)
}

func TestParse_MissingKeys(t *testing.T) {
	doc := `
connection:
  host: h
queues:
  core_files_queue:
    name: q
`
	_, err := Parse([]byte(doc))
	require.ErrorIs(t, err, ErrMissingKey)
	assert.Contains(t, err.Error(), "connection.username")
	assert.Contains(t, err.Error(), "connection.password")
	assert.Contains(t, err.Error(), "exchanges.main_exchange.name")
	assert.NotContains(t, err.Error(), "core_files_queue")
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("connection: [unterminated"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingKey)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(fullDoc), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "ruser", cfg.Connection.Username)
}

func TestLoad_NoFile(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
}
