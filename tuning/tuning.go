package tuning

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"pixelclimber/world"
)

//go:embed tuning.schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("tuning.schema.json", schemaJSON)

// Tuning 进程级调参文件：服务端、日志与生成器配置
type Tuning struct {
	// Seed 0 表示按启动时间取种子
	Seed   int64        `yaml:"seed" toml:"seed"`
	Server Server       `yaml:"server" toml:"server"`
	Log    Log          `yaml:"log" toml:"log"`
	World  world.Config `yaml:"world" toml:"world"`
}

// Server 房间循环与网络队列
type Server struct {
	TickRateHz       int    `yaml:"tick_rate_hz" toml:"tick_rate_hz"`
	InputQueue       int    `yaml:"input_queue" toml:"input_queue"`
	SendQueue        int    `yaml:"send_queue" toml:"send_queue"`
	MaxInputsPerTick int    `yaml:"max_inputs_per_tick" toml:"max_inputs_per_tick"`
	DefaultRoom      string `yaml:"default_room" toml:"default_room"`
}

// Log 日志文件与滚动策略
type Log struct {
	File       string `yaml:"file" toml:"file"`
	Level      string `yaml:"level" toml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `yaml:"compress" toml:"compress"`
	Console    bool   `yaml:"console" toml:"console"`
}

// Format 调参文件格式
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf 按扩展名判断格式
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("tuning: unsupported file extension %q", filepath.Ext(path))
}

// Defaults 未提供调参文件时的配置
func Defaults() Tuning {
	return Tuning{
		Server: Server{
			TickRateHz:       20,
			InputQueue:       256,
			SendQueue:        64,
			MaxInputsPerTick: 16,
			DefaultRoom:      "room-1",
		},
		Log: Log{
			File:       "app.log",
			Level:      "debug",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		World: world.DefaultConfig(),
	}
}

// Load 读取调参文件，缺省字段沿用 Defaults
func Load(path string) (Tuning, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Tuning{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	t, err := Parse(raw, format)
	if err != nil {
		return t, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// Parse 先按 schema 校验原始文档，再覆盖到默认值上并解析生成器配置
func Parse(raw []byte, format Format) (Tuning, error) {
	t := Defaults()
	var doc any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return t, fmt.Errorf("tuning yaml: %w", err)
		}
	case FormatTOML:
		m := map[string]any{}
		if err := toml.Unmarshal(raw, &m); err != nil {
			return t, fmt.Errorf("tuning toml: %w", err)
		}
		doc = m
	default:
		return t, fmt.Errorf("tuning: unknown format %q", format)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := validate(doc); err != nil {
		return t, err
	}

	var err error
	if format == FormatYAML {
		err = yaml.Unmarshal(raw, &t)
	} else {
		err = toml.Unmarshal(raw, &t)
	}
	if err != nil {
		return t, fmt.Errorf("tuning %s: %w", format, err)
	}
	if _, err := t.World.Resolve(); err != nil {
		return t, fmt.Errorf("tuning world: %w", err)
	}
	return t, nil
}

// validate 经 JSON 往返后交给 schema，数值统一为 json.Number
func validate(doc any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("tuning: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("tuning: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("tuning schema: %w", err)
	}
	return nil
}
