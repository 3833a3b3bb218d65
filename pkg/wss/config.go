package wss

import "time"

// Config controls the websocket upgrade and the read/write pumps of every
// connection accepted through it.
type Config struct {
	Path            string   `yaml:"path"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	ReadBufferSize  int      `yaml:"read_buffer_size"`
	WriteBufferSize int      `yaml:"write_buffer_size"`
	WriteWaitSec    int      `yaml:"write_wait_sec"`
	PongWaitSec     int      `yaml:"pong_wait_sec"`
	MaxMessageSize  int64    `yaml:"max_message_size"`

	// PingPeriod is derived from PongWait if left zero; see NewServer.
	PingPeriod time.Duration `yaml:"-"`
	PongWait   time.Duration `yaml:"-"`
	WriteWait  time.Duration `yaml:"-"`
}

// normalize fills in zero-valued fields with sane defaults and derives
// the duration fields from their *Sec counterparts.
func (c *Config) normalize() {
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = 4096
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = 4096
	}
	if c.WriteWaitSec == 0 {
		c.WriteWaitSec = 10
	}
	if c.PongWaitSec == 0 {
		c.PongWaitSec = 60
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 32 * 1024
	}
	c.WriteWait = time.Duration(c.WriteWaitSec) * time.Second
	c.PongWait = time.Duration(c.PongWaitSec) * time.Second
	if c.PingPeriod == 0 {
		c.PingPeriod = (c.PongWait * 9) / 10
	}
}
