package device

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/denisbrodbeck/machineid"

	"github.com/rtlessly/RTL-CommandBus/pkg/bus/remote"
	"github.com/rtlessly/RTL-CommandBus/pkg/bus/remote/mqtt"
	"github.com/rtlessly/RTL-CommandBus/pkg/bus/remote/websocket"
	fx "github.com/rtlessly/RTL-CommandBus/pkg/framework"
	"github.com/rtlessly/RTL-CommandBus/pkg/listener"
	"github.com/rtlessly/RTL-CommandBus/pkg/protocol"
)

// Config provides common options to set up a bus device.
type Config struct {
	// Name is the device name used to derive transport topics.
	Name string
	// DeviceID is the identity reported by CmdQueryID, 1-255.
	DeviceID uint
	// BusAddr is the bus address the device answers on, 1-127.
	BusAddr uint
	// Capacity bounds both the command and response slots, in bytes.
	Capacity uint
	// DeferredSlots sizes the deferred response table. Zero disables
	// deferred responses.
	DeferredSlots uint

	// MQTTBrokerURL specifies the MQTT broker to use.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string
	// ListenAddr accepts stream bus connections when non-empty.
	ListenAddr string
	// WSAddr accepts websocket bus connections when non-empty.
	WSAddr string
}

var defaultConfig = Config{
	DeviceID:      0x10,
	BusAddr:       0x10,
	Capacity:      protocol.DefaultBufferSize,
	DeferredSlots: 4,
}

// defaultName derives a stable device name from the machine identity.
func defaultName() string {
	id, err := machineid.ID()
	if err != nil {
		return "cmdbus"
	}
	return id
}

func init() {
	defaultConfig.Name = defaultName()
	if val := os.Getenv("CMDBUS_NAME"); val != "" {
		defaultConfig.Name = val
	}
	if val := os.Getenv("CMDBUS_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Name, "name", defaultConfig.Name, "Device name")
	flag.UintVar(&defaultConfig.DeviceID, "id", defaultConfig.DeviceID, "Device identity, 1-255")
	flag.UintVar(&defaultConfig.BusAddr, "addr", defaultConfig.BusAddr, "Bus address, 1-127")
	flag.UintVar(&defaultConfig.DeferredSlots, "deferred", defaultConfig.DeferredSlots, "Deferred response slots, 0 disables")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.ListenAddr, "listen", defaultConfig.ListenAddr, "TCP listen address for bus connections")
	flag.StringVar(&defaultConfig.WSAddr, "ws", defaultConfig.WSAddr, "WebSocket listen address for bus connections")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Env is the runtime environment of a bus device: the listener, the
// bus server it is attached to, and the configured transports.
type Env struct {
	Config   *Config
	Listener *listener.Listener
	Server   *remote.Server

	runners []fx.Runnable
}

// NewEnv creates Env from config with h handling commands.
func (c *Config) NewEnv(h listener.Handler) (*Env, error) {
	if c.DeviceID == 0 || c.DeviceID > 0xff {
		return nil, fmt.Errorf("device identity must be 1-255")
	}
	if c.BusAddr == 0 || c.BusAddr > 0x7f {
		return nil, fmt.Errorf("bus address must be 1-127")
	}
	opts := []listener.Option{listener.WithCapacity(int(c.Capacity))}
	if c.DeferredSlots > 0 {
		opts = append(opts, listener.WithDeferredTable(int(c.DeferredSlots)))
	}
	env := &Env{
		Config:   c,
		Listener: listener.New(byte(c.DeviceID), opts...),
	}
	env.Listener.Handler = h
	env.Server = remote.NewServer().Attach(byte(c.BusAddr), env.Listener)

	if c.MQTTBrokerURL != "" {
		q, err := mqtt.NewQueueFromURL(c.MQTTBrokerURL)
		if err != nil {
			return nil, fmt.Errorf("MQTT setup error: %v", err)
		}
		if token := q.Connect(); token.Wait() && token.Error() != nil {
			return nil, fmt.Errorf("MQTT connect error: %v", token.Error())
		}
		rw := mqtt.NewPacketReadWriter(q).ForDevice(c.Name)
		env.runners = append(env.runners,
			fx.NamedRun("mqtt-sub", rw),
			remote.ServeRunnable("mqtt-bus", env.Server, rw))
	}
	if addr := c.ListenAddr; addr != "" {
		env.runners = append(env.runners, fx.NamedRun("tcp-bus",
			fx.RunnableFunc(func(ctx context.Context) error {
				return env.Server.ListenAndServe(ctx, "tcp", addr)
			})))
	}
	if addr := c.WSAddr; addr != "" {
		env.runners = append(env.runners, fx.NamedRun("ws-bus",
			fx.RunnableFunc(func(ctx context.Context) error {
				return websocket.ListenAndServe(ctx, addr, env.Server)
			})))
	}
	if len(env.runners) == 0 {
		return nil, fmt.Errorf("at least one transport is required")
	}
	env.Listener.Begin()
	return env, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv(h listener.Handler) *Env {
	env, err := c.NewEnv(h)
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

// AddToLoop adds the listener and transports to loop.
func (e *Env) AddToLoop(loop *fx.Loop) {
	loop.Add(e.Listener)
	loop.AddRunnable(e.runners...)
}
