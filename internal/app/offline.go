package app

import (
	"errors"
	"fmt"

	"alertbot/internal/alerts"
	"alertbot/internal/config"
	"alertbot/internal/storage"
	logx "alertbot/pkg/logx"
)

// ErrEphemeralStore rejects offline access to the memory driver, whose
// notifications exist only inside the daemon process.
var ErrEphemeralStore = errors.New("storage driver memory keeps notifications inside the daemon; configure file, sqlite or postgres to manage them from the command line")

// Offline is an alert service over the configured store with no platform
// attached. It is never initialized: listing, marking read, cancel and clear
// work against the store, scheduling needs the running daemon.
//
// sqlite and postgres stores are shared with a running daemon. A file store
// is held by one process, so it opens only while the daemon is stopped. The
// memory store has nothing to share and is rejected.
type Offline struct {
	Config *config.Config
	Alerts *alerts.Service
	Store  storage.Store
}

// OpenOffline loads cfgPath without platform validation and opens its store.
func OpenOffline(cfgPath string, log logx.Logger) (*Offline, error) {
	cfg, err := config.NewManager(cfgPath).Parse()
	if err != nil {
		return nil, err
	}
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	switch sc.Driver {
	case "", "memory", "mem":
		return nil, ErrEphemeralStore
	}
	acfg, err := mapAlertsConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log)
	if errors.Is(err, storage.ErrLocked) {
		return nil, fmt.Errorf("file store %s is held by a running alertbot; stop it first or switch to sqlite or postgres: %w", sc.Path, err)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return &Offline{
		Config: cfg,
		Store:  store,
		Alerts: alerts.New(acfg, alerts.Options{Store: store, Log: log}),
	}, nil
}

func (o *Offline) Close() error { return o.Store.Close() }
