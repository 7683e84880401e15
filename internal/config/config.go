package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Bus      Bus     `yaml:"bus"`
	MQTT     MQTT    `yaml:"mqtt"`
	Control  Control `yaml:"control"`
	Robot    Robot   `yaml:"robot"`
	Frames   Frames  `yaml:"frames"`
	LogLevel string  `yaml:"log_level"`
}

type Bus struct {
	Interface    string  `yaml:"interface"`
	SDOTimeoutMS int     `yaml:"sdo_timeout_ms"`
	NodeIDs      NodeIDs `yaml:"node_ids"`
}

type NodeIDs struct {
	FrontLeft  uint8 `yaml:"fl"`
	BackLeft   uint8 `yaml:"bl"`
	BackRight  uint8 `yaml:"br"`
	FrontRight uint8 `yaml:"fr"`
}

// Array returns the node ids indexed by wheel (fl, bl, br, fr).
func (n NodeIDs) Array() [4]uint8 {
	return [4]uint8{n.FrontLeft, n.BackLeft, n.BackRight, n.FrontRight}
}

type MQTT struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topics   Topics `yaml:"topics"`
}

type Topics struct {
	Command          string `yaml:"command"`
	Odometry         string `yaml:"odometry"`
	ForwardVelocity  string `yaml:"forward_velocity"`
	MotorStatePrefix string `yaml:"motor_state_prefix"`
	Transform        string `yaml:"transform"`
}

type Control struct {
	TorqueMode  bool    `yaml:"torque_mode"`
	LoopRateHz  float64 `yaml:"loop_rate"`
	CmdTimeoutS float64 `yaml:"cmd_timeout"`
	Kp          float64 `yaml:"vel_kp"`
	Ki          float64 `yaml:"vel_ki"`
	Kd          float64 `yaml:"vel_kd"`
}

func (c Control) CmdTimeout() time.Duration {
	return time.Duration(c.CmdTimeoutS * float64(time.Second))
}

func (c Control) TickPeriod() time.Duration {
	return time.Duration(float64(time.Second) / c.LoopRateHz)
}

type Robot struct {
	WheelRadius float64 `yaml:"wheel_radius"`
	TrackWidth  float64 `yaml:"track_width"`
	MaxVx       float64 `yaml:"max_vx"`
	MaxW        float64 `yaml:"max_w"`
	MaxLinAccel float64 `yaml:"max_lin_accel"`
	MaxAngAccel float64 `yaml:"max_ang_accel"`
}

type Frames struct {
	Odom      string `yaml:"odom_frame"`
	Robot     string `yaml:"robot_frame"`
	PublishTF bool   `yaml:"publish_tf"`
}

func (b Bus) SDOTimeout() time.Duration {
	return time.Duration(b.SDOTimeoutMS) * time.Millisecond
}

// Default returns the deployed robot's stock parameters.
func Default() *Config {
	return &Config{
		Bus: Bus{
			Interface:    "can0",
			SDOTimeoutMS: 5,
			NodeIDs:      NodeIDs{FrontLeft: 1, BackLeft: 2, BackRight: 3, FrontRight: 4},
		},
		MQTT: MQTT{
			Broker:   "tcp://localhost:1883",
			ClientID: "zlac-drive",
			Topics: Topics{
				Command:          "cmd_vel",
				Odometry:         "odom",
				ForwardVelocity:  "forward_vel",
				MotorStatePrefix: "motor_state",
				Transform:        "tf",
			},
		},
		Control: Control{
			TorqueMode:  false,
			LoopRateHz:  100.0,
			CmdTimeoutS: 0.1,
			Kp:          200,
			Ki:          10,
			Kd:          0,
		},
		Robot: Robot{
			WheelRadius: 0.194,
			TrackWidth:  0.8,
			MaxVx:       2.0,
			MaxW:        1.57,
			MaxLinAccel: 10,
			MaxAngAccel: 15,
		},
		Frames: Frames{
			Odom:      "odom_link",
			Robot:     "base_link",
			PublishTF: false,
		},
		LogLevel: "info",
	}
}

// Load overlays the YAML file (when given) and broker credential overrides
// from the environment on the defaults. Loaded once at startup.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// .env is optional; real environment variables still win below.
	_ = godotenv.Load()
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Robot.WheelRadius <= 0:
		return fmt.Errorf("wheel_radius must be positive, got %g", c.Robot.WheelRadius)
	case c.Robot.TrackWidth <= 0:
		return fmt.Errorf("track_width must be positive, got %g", c.Robot.TrackWidth)
	case c.Robot.MaxVx <= 0 || c.Robot.MaxW <= 0:
		return fmt.Errorf("velocity limits must be positive, got max_vx=%g max_w=%g", c.Robot.MaxVx, c.Robot.MaxW)
	case c.Robot.MaxLinAccel <= 0 || c.Robot.MaxAngAccel <= 0:
		return fmt.Errorf("acceleration limits must be positive, got max_lin_accel=%g max_ang_accel=%g", c.Robot.MaxLinAccel, c.Robot.MaxAngAccel)
	case c.Control.LoopRateHz <= 0:
		return fmt.Errorf("loop_rate must be positive, got %g", c.Control.LoopRateHz)
	case c.Control.CmdTimeoutS <= 0:
		return fmt.Errorf("cmd_timeout must be positive, got %g", c.Control.CmdTimeoutS)
	case c.Bus.SDOTimeoutMS <= 0:
		return fmt.Errorf("sdo_timeout_ms must be positive, got %d", c.Bus.SDOTimeoutMS)
	case c.Bus.Interface == "":
		return fmt.Errorf("bus interface must be set")
	case c.MQTT.Broker == "":
		return fmt.Errorf("mqtt broker must be set")
	}
	return nil
}
