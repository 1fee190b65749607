package yml_config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvConfPath 配置文件路径环境变量
const EnvConfPath = "MBGW_CONF_PATH"

type Config struct {
	// 公共参数
	Listen            string        `yaml:"listen"              toml:"listen"`
	Multicore         bool          `yaml:"multicore"           toml:"multicore"`
	MaxCons           int           `yaml:"max-cons"            toml:"max-cons"`
	MaxPoolSize       int           `yaml:"max-pool-size"       toml:"max-pool-size"`
	ReceiveWindowSize int           `yaml:"receive-window-size" toml:"receive-window-size"`
	TickDuration      time.Duration `yaml:"tick-duration"       toml:"tick-duration"`
	AdminListen       string        `yaml:"admin-listen"        toml:"admin-listen"` // 为空时不开启管理端口

	// 分帧相关
	Framing        string `yaml:"framing"         toml:"framing"`
	Lookahead      bool   `yaml:"lookahead"       toml:"lookahead"`
	MaxOutstanding int    `yaml:"max-outstanding" toml:"max-outstanding"`
}

const (
	FramingTcp = "tcp"
	FramingRtu = "rtu"
)

// Default 默认配置
func Default() Config {
	return Config{
		Listen:            "tcp://:502",
		Multicore:         true,
		MaxCons:           64,
		MaxPoolSize:       256,
		ReceiveWindowSize: 1024,
		TickDuration:      time.Minute,
		Framing:           FramingTcp,
		MaxOutstanding:    16,
	}
}

// Load 读取配置文件，.toml 后缀按TOML解析，其余按YAML解析。
// path 为空时取 MBGW_CONF_PATH，仍为空则返回默认配置。
func Load(path string) (Config, error) {
	conf := Default()
	if path == "" {
		path = os.Getenv(EnvConfPath)
	}
	if path == "" {
		return conf, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return conf, fmt.Errorf("read config %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err = toml.Decode(string(content), &conf); err != nil {
			return conf, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if err = yaml.Unmarshal(content, &conf); err != nil {
		return conf, fmt.Errorf("parse config %s: %w", path, err)
	}
	return conf, conf.Validate()
}

func (c *Config) Validate() error {
	switch c.Framing {
	case FramingTcp, FramingRtu:
	default:
		return fmt.Errorf("unknown framing %q", c.Framing)
	}
	if c.MaxCons <= 0 || c.MaxPoolSize <= 0 || c.ReceiveWindowSize <= 0 {
		return fmt.Errorf("max-cons, max-pool-size and receive-window-size must be positive")
	}
	if c.TickDuration <= 0 {
		c.TickDuration = time.Minute
	}
	return nil
}
