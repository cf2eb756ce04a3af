package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/coreman2200/spiraltree/internal/device"
	"github.com/coreman2200/spiraltree/internal/geometry"
	"github.com/coreman2200/spiraltree/internal/settings"
)

const EnvPrefix = "SPIRALTREE"

type PowerCfg struct {
	BudgetMA float64 `yaml:"budget_ma" mapstructure:"budget_ma"` // 0 disables the budget stage
	ChanMA   float64 `yaml:"chan_ma" mapstructure:"chan_ma"`
	WhiteCap float64 `yaml:"white_cap" mapstructure:"white_cap"`
}

type Serial struct {
	Port        string `yaml:"port" mapstructure:"port"`
	Baud        int    `yaml:"baud" mapstructure:"baud"`
	AutoConnect bool   `yaml:"auto_connect" mapstructure:"auto_connect"`
}

type SPI struct {
	Dev     string `yaml:"dev" mapstructure:"dev"`           // periph port name, "" = first
	SpeedHz int    `yaml:"speed_hz" mapstructure:"speed_hz"` // e.g. 2500000
}

type Config struct {
	Hardware geometry.HardwareSpec `yaml:"hardware" mapstructure:"hardware"`

	Driver   string `yaml:"driver" mapstructure:"driver"` // "sim" | "nrz" | "console" | "none"
	FPS      int    `yaml:"fps" mapstructure:"fps"`
	Addr     string `yaml:"addr" mapstructure:"addr"`
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	Show     string `yaml:"show,omitempty" mapstructure:"show"`
	Seed     int64  `yaml:"seed" mapstructure:"seed"`

	Speed        float64          `yaml:"speed" mapstructure:"speed"`
	Brightness   int              `yaml:"brightness" mapstructure:"brightness"`
	HWBrightness int              `yaml:"hw_brightness" mapstructure:"hw_brightness"`
	RPS          float64          `yaml:"rps" mapstructure:"rps"`
	Demo         bool             `yaml:"demo" mapstructure:"demo"`
	Percent      settings.Percent `yaml:"percent" mapstructure:"percent"`

	Serial Serial         `yaml:"serial" mapstructure:"serial"`
	SPI    SPI            `yaml:"spi" mapstructure:"spi"`
	Power  PowerCfg       `yaml:"power" mapstructure:"power"`
	Device device.Options `yaml:"device" mapstructure:"device"`
}

func setDefaults(v *viper.Viper) {
	hw := geometry.DefaultSpec()
	v.SetDefault("hardware.arm_count", hw.ArmCount)
	v.SetDefault("hardware.arm_length_mm", hw.ArmLengthMM)
	v.SetDefault("hardware.arm_spacing_mm", hw.ArmSpacingMM)
	v.SetDefault("hardware.led_pitch_mm", hw.LEDPitchMM)
	v.SetDefault("hardware.trunk_diameter_mm", hw.TrunkDiameterMM)
	v.SetDefault("hardware.total_height_mm", hw.TotalHeightMM)

	v.SetDefault("driver", "sim")
	v.SetDefault("fps", 60)
	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("show", "")
	v.SetDefault("seed", 0)

	s := settings.Defaults()
	v.SetDefault("speed", s.Speed)
	v.SetDefault("brightness", s.Brightness)
	v.SetDefault("hw_brightness", s.HWBrightness)
	v.SetDefault("rps", s.RPS)
	v.SetDefault("demo", true)
	v.SetDefault("percent.green", s.Percent.Green)
	v.SetDefault("percent.red", s.Percent.Red)
	v.SetDefault("percent.blue", s.Percent.Blue)

	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", 115200)
	v.SetDefault("serial.auto_connect", false)
	v.SetDefault("spi.dev", "")
	v.SetDefault("spi.speed_hz", 2500000)

	v.SetDefault("power.budget_ma", 0)
	v.SetDefault("power.chan_ma", 20)
	v.SetDefault("power.white_cap", 3.0)

	d := device.DefaultOptions()
	v.SetDefault("device.strips", d.Strips)
	v.SetDefault("device.per_strip", d.PerStrip)
	v.SetDefault("device.brightness", d.Brightness)
	v.SetDefault("device.percent.green", d.Percent.Green)
	v.SetDefault("device.percent.red", d.Percent.Red)
	v.SetDefault("device.percent.blue", d.Percent.Blue)
	v.SetDefault("device.interval", d.Interval.String())
	v.SetDefault("device.seed", 0)
}

// Load reads path (YAML) over the defaults, then SPIRALTREE_* environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				var nf viper.ConfigFileNotFoundError
				if !errors.As(err, &nf) {
					return nil, fmt.Errorf("error reading config file: %w", err)
				}
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Hardware.Validate(); err != nil {
		return nil, fmt.Errorf("hardware: %w", err)
	}
	return &c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Settings is the startup snapshot described by c.
func (c *Config) Settings() settings.Settings {
	s := settings.Defaults()
	s.Speed = c.Speed
	s.Brightness = c.Brightness
	s.HWBrightness = c.HWBrightness
	s.RPS = c.RPS
	s.Percent = c.Percent
	s.ArmSpacing = c.Hardware.ArmSpacingMM
	if !c.Demo {
		s.Mode = settings.ModeAllOn
	}
	return s
}

// Capture copies the persistable parts of s back into c.
func (c *Config) Capture(s settings.Settings) {
	c.Speed = s.Speed
	c.Brightness = s.Brightness
	c.HWBrightness = s.HWBrightness
	c.RPS = s.RPS
	c.Percent = s.Percent
	c.Demo = s.Mode == settings.ModeDemo
	c.Hardware.ArmSpacingMM = s.ArmSpacing
}

// Params are the limiter uniforms for the LED output.
func (p PowerCfg) Params() map[string]float64 {
	return map[string]float64{
		"Budget_mA":  p.BudgetMA,
		"LEDChan_mA": p.ChanMA,
		"WhiteCap":   p.WhiteCap,
	}
}
