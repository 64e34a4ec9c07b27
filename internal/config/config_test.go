package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "dispatch_db", cfg.Database.Database)
				assert.Equal(t, "dispatch_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "dispatch_jobs", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, "dispatch-api-service", cfg.App.Name)
				assert.Equal(t, 3, cfg.Worker.MaxAttempts)
				assert.Equal(t, 5*time.Second, cfg.Worker.BackoffBase)
				assert.Equal(t, 10, cfg.Delivery.PageSize)
				assert.Equal(t, 30*time.Second, cfg.Delivery.PollWindow)
				assert.Equal(t, 1000, cfg.Sweeper.CompletedKeep)
				assert.Equal(t, 5000, cfg.Sweeper.FailedKeep)
				assert.NotEmpty(t, cfg.Encryption.Key)
			}
		})
	}
}

func validConfig() *Config {
	cfg, err := Load("testdata/valid_config.yaml")
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "missing database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "missing database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "missing rabbitmq exchange",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "missing encryption key",
			mutate:    func(c *Config) { c.Encryption.Key = "" },
			wantErr:   true,
			errString: "encryption key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			wantErr:   true,
			errString: "worker concurrency must be greater than 0",
		},
		{
			name:      "zero max attempts",
			mutate:    func(c *Config) { c.Worker.MaxAttempts = 0 },
			wantErr:   true,
			errString: "worker max_attempts must be greater than 0",
		},
		{
			name:      "zero backoff base",
			mutate:    func(c *Config) { c.Worker.BackoffBase = 0 },
			wantErr:   true,
			errString: "worker backoff_base must be greater than 0",
		},
		{
			name:      "zero job timeout",
			mutate:    func(c *Config) { c.Worker.JobTimeout = 0 },
			wantErr:   true,
			errString: "worker job_timeout must be greater than 0",
		},
		{
			name:      "missing rabbitmq queue",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			wantErr:   true,
			errString: "rabbitmq queue name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
