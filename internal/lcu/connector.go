package lcu

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// connectorState tracks the current phase of the discovery lifecycle.
type connectorState int

const (
	stateIdle connectorState = iota
	stateResolvingPath
	stateWatchingLockfile
	stateSocketActive
)

// processPollInterval is how often the process table is scanned while no
// install directory is known.
const processPollInterval = time.Second

// FeedEvent is one frame delivered from the subscribed feed. Raw holds the
// frame bytes exactly as received; Body is the normalized event object.
type FeedEvent struct {
	Raw      []byte
	Body     map[string]any
	Terminal bool
}

// Connector discovers a running client, watches its lockfile, and bridges
// feed events to channel consumers. Channels have capacity one; a slow
// consumer loses intermediate updates, never blocks the connector.
type Connector struct {
	logger *slog.Logger
	feed   string

	mu     sync.Mutex
	state  connectorState
	socket *eventSocket
	stopCh chan struct{}
	doneWG sync.WaitGroup
	once   sync.Once

	installDir string

	onConnect    chan ConnectionInfo
	onDisconnect chan struct{}
	onFeedEvent  chan FeedEvent
	onFeedEnded  chan struct{}
}

// NewConnector returns an idle connector for the given feed. Pass an empty
// installDir to discover the client from the process table.
func NewConnector(logger *slog.Logger, feed, installDir string) *Connector {
	return &Connector{
		logger:       logger,
		feed:         feed,
		installDir:   installDir,
		stopCh:       make(chan struct{}),
		onConnect:    make(chan ConnectionInfo, 1),
		onDisconnect: make(chan struct{}, 1),
		onFeedEvent:  make(chan FeedEvent, 1),
		onFeedEnded:  make(chan struct{}, 1),
	}
}

// OnConnect delivers connection credentials after the feed subscription is
// established.
func (c *Connector) OnConnect() <-chan ConnectionInfo { return c.onConnect }

// OnDisconnect fires once per connection after its last feed event.
func (c *Connector) OnDisconnect() <-chan struct{} { return c.onDisconnect }

// OnFeedEvent delivers normalized feed frames.
func (c *Connector) OnFeedEvent() <-chan FeedEvent { return c.onFeedEvent }

// OnFeedEnded fires when a terminal event closes out the feed.
func (c *Connector) OnFeedEnded() <-chan struct{} { return c.onFeedEnded }

// Start begins discovery. If an install directory was supplied it is
// validated and watched directly; otherwise the process table is polled
// until a client process reveals one.
func (c *Connector) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateIdle {
		return fmt.Errorf("connector already started")
	}

	if c.installDir != "" {
		if !ValidInstallDir(c.installDir) {
			return fmt.Errorf("%q is not a client install directory", c.installDir)
		}
		c.state = stateWatchingLockfile
		c.doneWG.Add(1)
		go c.watchLockfile(c.installDir)

		return nil
	}

	c.state = stateResolvingPath
	c.doneWG.Add(1)
	go c.pollProcesses()

	return nil
}

// Stop tears down the socket, the watchers, and closes all consumer
// channels. Safe to call more than once.
func (c *Connector) Stop() {
	c.once.Do(func() {
		c.mu.Lock()
		close(c.stopCh)
		if c.socket != nil {
			c.socket.close()
		}
		c.state = stateIdle
		c.mu.Unlock()

		c.doneWG.Wait()

		close(c.onConnect)
		close(c.onDisconnect)
		close(c.onFeedEvent)
		close(c.onFeedEnded)
	})
}

// pollProcesses scans the process table until a client process yields an
// install directory, then hands off to the lockfile watcher.
func (c *Connector) pollProcesses() {
	defer c.doneWG.Done()

	ticker := time.NewTicker(processPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			dir, err := InstallDirFromProcess()
			if err != nil {
				c.logger.Debug("client process not found", "error", err)

				continue
			}

			c.mu.Lock()
			if c.state != stateResolvingPath {
				c.mu.Unlock()

				return
			}
			c.installDir = dir
			c.state = stateWatchingLockfile
			c.doneWG.Add(1)
			go c.watchLockfile(dir)
			c.mu.Unlock()

			c.logger.Info("client located", "install_dir", dir)

			return
		}
	}
}

// watchLockfile watches the install directory for lockfile writes. A
// lockfile already on disk counts as a create so a client started before
// the connector is picked up immediately.
func (c *Connector) watchLockfile(dir string) {
	defer c.doneWG.Done()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		c.logger.Error("create lockfile watcher", "error", err)

		return
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		c.logger.Error("watch install directory", "error", err, "dir", dir)

		return
	}

	lockPath := filepath.Join(dir, lockfileName)
	if fileExists(lockPath) {
		c.tryConnect(lockPath)
	}

	for {
		select {
		case <-c.stopCh:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != lockfileName {
				continue
			}
			switch {
			case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
				c.tryConnect(lockPath)
			case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
				c.handleSocketClosed()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("lockfile watcher error", "error", err)
		}
	}
}

// tryConnect parses the lockfile and opens a feed socket. A partially
// written or malformed lockfile is ignored; the next write retriggers.
func (c *Connector) tryConnect(lockPath string) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		c.logger.Debug("read lockfile", "error", err)

		return
	}
	info, ok := parseLockfile(data)
	if !ok {
		c.logger.Debug("lockfile not yet parseable")

		return
	}

	c.mu.Lock()
	if c.state != stateWatchingLockfile {
		c.mu.Unlock()

		return
	}
	c.mu.Unlock()

	socket := newEventSocket(c.logger, c.feed)
	if err := socket.open(info); err != nil {
		c.logger.Debug("socket open failed", "error", err)

		return
	}

	c.mu.Lock()
	if c.state != stateWatchingLockfile {
		c.mu.Unlock()
		socket.close()

		return
	}

	c.socket = socket
	c.state = stateSocketActive
	c.emitConnect(info)
	c.mu.Unlock()

	c.doneWG.Add(1)
	go func() {
		defer c.doneWG.Done()
		socket.readLoop(c.handleFrame)
		c.handleSocketClosed()
	}()
}

// handleFrame normalizes one subscribed frame and forwards it. Events are
// only delivered while the socket is active, so a consumer always sees the
// connect notification first.
func (c *Connector) handleFrame(raw []byte, payload []any) {
	body, terminal := Normalize(payload)

	c.mu.Lock()
	if c.state != stateSocketActive {
		c.mu.Unlock()

		return
	}
	c.emitFeedEvent(FeedEvent{Raw: raw, Body: body, Terminal: terminal})
	if terminal {
		c.emitFeedEnded()
	}
	c.mu.Unlock()
}

// handleSocketClosed transitions back to lockfile watching. The state
// guard makes the disconnect notification single-winner when the read
// loop and a lockfile removal race.
func (c *Connector) handleSocketClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateSocketActive {
		return
	}

	c.socket.close()
	c.socket = nil
	c.state = stateWatchingLockfile
	c.emitDisconnect()

	c.logger.Info("client disconnected, watching for lockfile")
}

// Emits drop on a full buffer instead of blocking.

func (c *Connector) emitConnect(info ConnectionInfo) {
	select {
	case c.onConnect <- info:
	default:
	}
}

func (c *Connector) emitDisconnect() {
	select {
	case c.onDisconnect <- struct{}{}:
	default:
	}
}

func (c *Connector) emitFeedEvent(ev FeedEvent) {
	select {
	case c.onFeedEvent <- ev:
	default:
		c.logger.Debug("feed event dropped, consumer behind")
	}
}

func (c *Connector) emitFeedEnded() {
	select {
	case c.onFeedEnded <- struct{}{}:
	default:
	}
}
