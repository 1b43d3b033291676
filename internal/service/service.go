package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"gpsd-bridge/internal/bridge"
	"gpsd-bridge/internal/config"
	"gpsd-bridge/internal/gpio"
	"gpsd-bridge/internal/gpsd"
	"gpsd-bridge/internal/mm"
	"gpsd-bridge/internal/modem"
	redisClient "gpsd-bridge/internal/redis"
	"gpsd-bridge/internal/wakelock"
)

// publishTimeout bounds each redis write
const publishTimeout = 2 * time.Second

// Vehicle states that should start tracking
var trackingStates = map[string]bool{
	"parked":         true,
	"ready-to-drive": true,
}

// tracker is the bridge lifecycle surface the service drives
type tracker interface {
	Init(cb bridge.Callbacks) error
	Start() error
	Stop() error
	SetInterval(interval time.Duration, recurrence bridge.Recurrence) error
	Cleanup()
	DumpInternalState() string
}

type publisher interface {
	PublishGPSState(ctx context.Context, field, value string) error
	PublishLocation(ctx context.Context, data map[string]interface{}, stale []string) error
	PublishSatellites(ctx context.Context, data map[string]interface{}) error
}

type sleepLock interface {
	Acquire()
	Release()
	Close()
}

type receiverPower interface {
	Enable() error
	Disable() error
	Close() error
}

type gnssModem interface {
	EnableGNSS(ctx context.Context) error
	DisableGNSS() error
}

type Service struct {
	Config   *config.Config
	Logger   *log.Logger
	Redis    *redisClient.Client
	MMClient *mm.Client

	bridge   tracker
	pub      publisher
	wakelock sleepLock
	power    receiverPower
	modem    gnssModem
	version  string

	// ctx bounds hardware waits; redis writes use publishContext
	ctx context.Context

	// mu serializes bridge control and the tracking target state
	mu       sync.Mutex
	tracking bool
}

func New(cfg *config.Config, logger *log.Logger, version string) (*Service, error) {
	redis, err := redisClient.New(cfg.RedisURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client: %v", err)
	}

	bcfg := bridge.Config{
		GlonassFirstPRN: cfg.GlonassFirstPRN,
		GlonassLastPRN:  cfg.GlonassLastPRN,
		Debug:           cfg.Debug,
	}

	service := &Service{
		Config:  cfg,
		Logger:  logger,
		Redis:   redis,
		bridge:  bridge.New(bcfg, logger, gpsd.Dialer(cfg.GpsdServer, logger)),
		pub:     redis,
		version: version,
		ctx:     context.Background(),
	}

	if cfg.Wakelock {
		inh, err := wakelock.New("gpsd-bridge", "Handling GNSS events", logger)
		if err != nil {
			logger.Printf("Sleep inhibitor unavailable, continuing without: %v", err)
		} else {
			service.wakelock = inh
		}
	}

	if cfg.PowerLine >= 0 {
		pc := gpio.NewPowerController(cfg.PowerChip, cfg.PowerLine, logger.Printf)
		if err := pc.Init(); err != nil {
			redis.Close()
			return nil, fmt.Errorf("failed to init receiver power: %v", err)
		}
		service.power = pc
	}

	if cfg.ModemGNSS {
		mmClient, err := mm.NewClient(cfg.Debug, logger.Printf)
		if err != nil {
			service.close()
			return nil, fmt.Errorf("failed to create ModemManager client: %v", err)
		}
		service.MMClient = mmClient
		service.modem = modem.NewManager(logger, mmClient)
	}

	service.Logger.Printf("gpsd-bridge v%s", version)

	return service, nil
}

func (s *Service) Run(ctx context.Context) error {
	s.ctx = ctx

	if err := s.Redis.Ping(ctx); err != nil {
		return fmt.Errorf("redis connection failed: %v", err)
	}

	if err := s.bridge.Init(s.callbacks()); err != nil {
		return fmt.Errorf("failed to init bridge: %v", err)
	}
	if err := s.bridge.SetInterval(s.Config.Interval, bridge.RecurrencePeriodic); err != nil {
		s.Logger.Printf("Failed to set report interval: %v", err)
	}
	s.publishTracking(false)

	s.Redis.StartCommandHandler(ctx, s.handleCommand)

	if err := s.Redis.StartVehicleStateWatcher(ctx, s.handleVehicleState); err != nil {
		s.Logger.Printf("Failed to start vehicle state watcher: %v", err)
	}

	if s.MMClient != nil {
		if err := s.MMClient.WatchModems(s.handleModemAdded); err != nil {
			s.Logger.Printf("Failed to watch for modems: %v", err)
		}
	}

	s.Logger.Printf("Bridging gpsd on %s", s.Config.GpsdServer)

	<-ctx.Done()

	s.shutdown()
	return nil
}

func (s *Service) shutdown() {
	s.mu.Lock()
	if err := s.stopTrackingLocked(); err != nil {
		s.Logger.Printf("Failed to stop tracking: %v", err)
	}
	s.bridge.Cleanup()
	s.mu.Unlock()

	s.close()
}

func (s *Service) close() {
	if s.wakelock != nil {
		s.wakelock.Close()
	}
	if s.power != nil {
		if err := s.power.Close(); err != nil {
			s.Logger.Printf("Failed to release receiver power line: %v", err)
		}
	}
	if s.MMClient != nil {
		s.MMClient.Close()
	}
	if s.Redis != nil {
		s.Redis.Close()
	}
}

// handleCommand handles commands pushed to scooter:gps
func (s *Service) handleCommand(command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case command == "start":
		s.Logger.Printf("Received start command")
		return s.startTrackingLocked()
	case command == "stop":
		s.Logger.Printf("Received stop command")
		return s.stopTrackingLocked()
	case command == "dump":
		version := s.bridge.DumpInternalState()
		s.Logger.Printf("gpsd version: %q", version)
		ctx, cancel := publishContext()
		defer cancel()
		return s.pub.PublishGPSState(ctx, "gpsd-version", version)
	case strings.HasPrefix(command, "interval:"):
		ms, err := strconv.Atoi(strings.TrimPrefix(command, "interval:"))
		if err != nil || ms < 0 {
			return fmt.Errorf("invalid interval in %q", command)
		}
		interval := time.Duration(ms) * time.Millisecond
		s.Logger.Printf("Received interval command: %v", interval)
		return s.bridge.SetInterval(interval, bridge.RecurrencePeriodic)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// handleVehicleState starts tracking when the vehicle comes online
func (s *Service) handleVehicleState(state string) error {
	if !trackingStates[state] {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tracking {
		s.Logger.Printf("Vehicle state '%s' - starting tracking", state)
	}
	return s.startTrackingLocked()
}

// handleModemAdded re-enables modem GNSS after the modem re-enumerates
func (s *Service) handleModemAdded(path dbus.ObjectPath) {
	s.mu.Lock()
	tracking := s.tracking
	s.mu.Unlock()

	if !tracking || s.modem == nil {
		return
	}
	if err := s.modem.EnableGNSS(s.ctx); err != nil {
		s.Logger.Printf("Failed to re-enable GNSS on %s: %v", path, err)
	}
}

func (s *Service) startTrackingLocked() error {
	if s.tracking {
		return nil
	}

	if s.power != nil {
		if err := s.power.Enable(); err != nil {
			return fmt.Errorf("failed to power receiver: %v", err)
		}
	}

	// gpsd may still have other receivers, so a modem failure is not fatal
	if s.modem != nil {
		if err := s.modem.EnableGNSS(s.ctx); err != nil {
			s.Logger.Printf("Failed to enable modem GNSS: %v", err)
		}
	}

	if err := s.bridge.Start(); err != nil {
		return fmt.Errorf("failed to start bridge: %v", err)
	}

	s.tracking = true
	s.publishTracking(true)
	return nil
}

func (s *Service) stopTrackingLocked() error {
	if !s.tracking {
		return nil
	}

	if err := s.bridge.Stop(); err != nil {
		return fmt.Errorf("failed to stop bridge: %v", err)
	}
	s.tracking = false

	if s.modem != nil {
		if err := s.modem.DisableGNSS(); err != nil {
			s.Logger.Printf("Failed to disable modem GNSS: %v", err)
		}
	}
	if s.power != nil {
		if err := s.power.Disable(); err != nil {
			s.Logger.Printf("Failed to power down receiver: %v", err)
		}
	}

	s.publishTracking(false)
	return nil
}

func (s *Service) publishTracking(on bool) {
	ctx, cancel := publishContext()
	defer cancel()
	if err := s.pub.PublishGPSState(ctx, "tracking", strconv.FormatBool(on)); err != nil {
		s.Logger.Printf("Failed to publish tracking state: %v", err)
	}
}

// publishContext does not derive from the run context, so writes made
// during shutdown still land.
func publishContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), publishTimeout)
}
