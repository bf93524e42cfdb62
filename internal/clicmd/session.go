package clicmd

import (
	"fmt"

	"mailcache/internal/cachemanager"
	"mailcache/internal/hostconfig"
	"mailcache/internal/remote"
	"mailcache/internal/store"
)

// session bundles the open Store and its Cache Manager for one
// mailcachectl invocation.
type session struct {
	cfg   *hostconfig.Config
	store *store.Store
	mgr   *cachemanager.Manager
}

// openSession loads the host config at configPath, dials the remote when
// the configured mode requires one, and opens the Store (spec.md §6).
func openSession() (*session, error) {
	cfg, err := hostconfig.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("mailcachectl: %w", err)
	}
	mode, err := cfg.Mode()
	if err != nil {
		return nil, fmt.Errorf("mailcachectl: %w", err)
	}

	var dialer store.RemoteDialer
	if mode.RequiresRemote() {
		password := cfg.IMAP.Password
		if password == "" {
			password, err = promptPassword(cfg.IMAP.User)
			if err != nil {
				return nil, fmt.Errorf("mailcachectl: %w", err)
			}
		}
		rs, err := remote.Dial(remote.Credentials{
			Host:     cfg.IMAP.Host,
			Port:     cfg.IMAP.Port,
			Username: cfg.IMAP.User,
			Password: password,
		})
		if err != nil {
			return nil, fmt.Errorf("mailcachectl: connect to %s: %w", cfg.IMAP.Host, err)
		}
		dialer = rs
	}

	username := cfg.IMAP.User
	if username == "" {
		username = "default"
	}

	st, err := store.Open(cfg.Cache.Directory, username, "/", mode, dialer)
	if err != nil {
		return nil, fmt.Errorf("mailcachectl: %w", err)
	}
	return &session{cfg: cfg, store: st, mgr: cachemanager.New(st)}, nil
}

func (s *session) close() {
	s.store.Close()
}
