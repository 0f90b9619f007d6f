package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	fileAgentConfigKey  = "agents.files"
	debugAgentConfigKey = "agents.debug"
	logLevelKey         = "log_level"

	defaultTimeout      = 30 * time.Second
	defaultPreviewLimit = 500
	defaultLogLevel     = "info"
)

// AgentConfig describes one agent endpoint.
type AgentConfig struct {
	URL string `mapstructure:"url"`
	// Token overrides the date derived default when set.
	Token        string        `mapstructure:"token"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PreviewLimit int           `mapstructure:"preview_limit"`
}

func (c AgentConfig) String() string {
	token := "<derived>"
	if c.Token != "" {
		token = "<override>"
	}
	return fmt.Sprintf(`{
URL: %s
Token: %s
Timeout: %s
PreviewLimit: %d
}`, c.URL, token, c.Timeout, c.PreviewLimit)
}

type ClientConfig struct {
	Files    AgentConfig
	Debug    AgentConfig
	LogLevel string
}

func (c ClientConfig) String() string {
	return fmt.Sprintf(`{
Files: %s
Debug: %s
LogLevel: %s
}`, c.Files, c.Debug, c.LogLevel)
}

func defaultAgentConfig() AgentConfig {
	return AgentConfig{
		Timeout:      defaultTimeout,
		PreviewLimit: defaultPreviewLimit,
	}
}

// Default is used when no config file exists.
func Default() *ClientConfig {
	return &ClientConfig{
		Files:    defaultAgentConfig(),
		Debug:    defaultAgentConfig(),
		LogLevel: defaultLogLevel,
	}
}

func readAgent(v *viper.Viper, key string) (AgentConfig, error) {
	result := defaultAgentConfig()
	sub := v.Sub(key)
	if sub == nil {
		return result, nil
	}
	if err := sub.Unmarshal(&result); err != nil {
		return result, fmt.Errorf("error unmarshalling %s config: %v", key, err)
	}
	if result.Timeout <= 0 {
		result.Timeout = defaultTimeout
	}
	if result.PreviewLimit <= 0 {
		result.PreviewLimit = defaultPreviewLimit
	}
	return result, nil
}

// GetClientConfig reads configFile. A missing file yields the defaults when
// optional is true, so flags alone are enough to run the clients.
func GetClientConfig(configFile string, optional bool) (*ClientConfig, error) {
	if configFile == "" {
		return Default(), nil
	}
	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) && optional {
		return Default(), nil
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %v", err)
	}

	files, err := readAgent(v, fileAgentConfigKey)
	if err != nil {
		return nil, err
	}
	debug, err := readAgent(v, debugAgentConfigKey)
	if err != nil {
		return nil, err
	}

	result := &ClientConfig{Files: files, Debug: debug, LogLevel: defaultLogLevel}
	if level := v.GetString(logLevelKey); level != "" {
		result.LogLevel = level
	}
	return result, nil
}
