package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aprsbot/internal/aprs"
	"aprsbot/internal/config"
	"aprsbot/internal/remote"
	"aprsbot/internal/storage"
	"aprsbot/internal/tnc"
	"aprsbot/pkg/logx"
)

// Transport is the radio link as seen by the bot core.
type Transport interface {
	Connect() error
	Connected() bool
	EnqueueFrame(f *aprs.Frame)
}

const (
	// tickInterval drives the scheduler pass.
	tickInterval = time.Second
	// reconnectFloor is the minimum spacing between reconnect attempts.
	// The TNC is topologically close, so no exponential backoff.
	reconnectFloor = 5 * time.Second

	defaultStatusFreq = 10 * time.Minute
)

// App owns the scheduler state and wires every component together. All
// mutation happens under mu: the tick loop and the transport's inbound
// deliveries are serialized, so the debouncer's check-then-insert and the
// bulletin timers never race.
type App struct {
	log    logx.Logger
	logSvc *logx.Service

	cfgMgr *config.Manager
	store  storage.Store
	trans  Transport
	pump   *remote.Pump

	mu       sync.Mutex
	router   *Router
	nets     *NetSessions
	blns     *Bulletins
	callsign string
	path     string

	statusFreq  time.Duration
	statusHosts remote.HostChecks

	lastStatus    time.Time
	lastReconnect time.Time

	now func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewApp loads the config and builds the full bot. A bad config or an
// unopenable database is fatal here; later reload failures are not.
func NewApp(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	mgr.SetValidator(ValidateRules)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logConfig(cfg.Logging))
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	busy, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	store, err := storage.Open(storage.Config{Path: cfg.Storage.Path, BusyTimeout: busy},
		log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	client := tnc.NewClient(log.With(logx.String("comp", "tnc")))

	a := &App{
		log:    log,
		logSvc: logSvc,
		cfgMgr: mgr,
		store:  store,
		trans:  client,
		pump:   remote.NewPump(2, log.With(logx.String("comp", "remote"))),
		now:    time.Now,
	}
	a.nets = NewNetSessions(store, a.sendMessage, log.With(logx.String("comp", "net")))
	a.router = NewRouter(NewDebouncer(store, log), a.nets, a.sendMessage, log.With(logx.String("comp", "router")))
	a.blns = NewBulletins(a.sendMessage, log.With(logx.String("comp", "bulletins")))
	a.lastStatus = a.now()

	client.SetFrameHandler(a.onFrame)

	if err := a.applyConfig(cfg); err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

// Start launches the config watcher, the job workers and the tick loop.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})

	a.pump.Start(ctx)
	go func() {
		if err := a.cfgMgr.Watch(ctx); err != nil {
			a.log.Warn("config watcher unavailable, relying on mtime polling", logx.Err(err))
		}
	}()

	// First connection attempt happens on the first tick through the
	// reconnect check, so a dead TNC at boot is not fatal.
	go a.tickLoop(ctx)
}

func (a *App) Stop() {
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
	a.pump.Stop()
	if c, ok := a.trans.(*tnc.Client); ok {
		c.Close()
	}
	_ = a.store.Close()
	_ = a.logSvc.Close()
}

func (a *App) tickLoop(ctx context.Context) {
	defer close(a.done)

	t := time.NewTicker(tickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.Tick(ctx)
		}
	}
}

// Tick runs one scheduler pass in a fixed order: config reload,
// reconnection, bulletins, status submission, result draining.
func (a *App) Tick(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cfg, ok := a.cfgMgr.CheckUpdated(); ok {
		if err := a.applyConfig(cfg); err != nil {
			a.log.Error("config apply failed", logx.Err(err))
		}
	}
	a.checkReconnection()
	a.blns.Tick()
	a.updateStatus()
	a.drainResults()
}

// onFrame is the transport's receive callback. It shares the tick mutex so
// inbound routing never interleaves with a scheduler pass.
func (a *App) onFrame(f *aprs.Frame) {
	msg, ok := aprs.MessageFromFrame(f)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.router.Route(context.Background(), msg)
}

func (a *App) applyConfig(cfg *config.Config) error {
	a.logSvc.Apply(logConfig(cfg.Logging))

	if c, ok := a.trans.(*tnc.Client); ok {
		c.SetAddress(cfg.TNC.Addr, cfg.TNC.Port)
	}

	a.callsign = cfg.APRS.Callsign
	a.path = cfg.APRS.Path
	a.router.SetCallsign(cfg.APRS.Callsign)

	if err := a.blns.Apply(cfg.Bulletins); err != nil {
		return err
	}

	if cfg.Status != nil {
		freq, err := config.ParseDurationOrDefault("status.send_freq", cfg.Status.SendFreq, defaultStatusFreq)
		if err != nil {
			return err
		}
		a.statusFreq = freq
		a.statusHosts = remote.HostChecks{
			EthHost:  cfg.Status.EthHost,
			InetHost: cfg.Status.InetHost,
			DNSHost:  cfg.Status.DNSHost,
			VPNHost:  cfg.Status.VPNHost,
		}
	} else {
		a.statusFreq = 0
		a.statusHosts = remote.HostChecks{}
	}
	return nil
}

func (a *App) checkReconnection() {
	if a.trans.Connected() {
		return
	}
	now := a.now()
	if now.Sub(a.lastReconnect) < reconnectFloor {
		return
	}
	a.lastReconnect = now
	a.log.Info("trying to reconnect")
	if err := a.trans.Connect(); err != nil {
		a.log.Warn("reconnect failed", logx.Err(err))
	}
}

func (a *App) updateStatus() {
	if a.statusFreq <= 0 {
		return
	}
	now := a.now()
	if now.Sub(a.lastStatus) < a.statusFreq {
		return
	}
	a.lastStatus = now
	a.pump.Submit(&remote.SystemStatusJob{Hosts: a.statusHosts})
}

// drainResults empties the pump's completed-result queue, turning each
// result into an outbound announcement.
func (a *App) drainResults() {
	for {
		res, ok := a.pump.Poll()
		if !ok {
			return
		}
		switch res.Kind {
		case remote.ResultSystemStatus:
			a.sendStatus(res.Status)
		default:
			a.log.Warn("unknown remote result kind", logx.Int("kind", int(res.Kind)))
		}
	}
}

func (a *App) sendMessage(to, text string) {
	a.log.Info("sending message", logx.String("to", to), logx.String("text", text))
	a.trans.EnqueueFrame(aprs.NewFrame(a.callsign, a.path, aprs.MessageInfo(to, text)))
}

func (a *App) sendStatus(status string) {
	a.log.Info("sending status", logx.String("text", status))
	a.trans.EnqueueFrame(aprs.NewFrame(a.callsign, a.path, aprs.StatusInfo(status)))
}

func logConfig(lc config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   lc.Level,
		Console: lc.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: lc.File != "",
			Path:    lc.File,
		},
	}
}
