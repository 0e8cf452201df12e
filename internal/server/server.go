// Package server ties the listeners, the router, the peer manager,
// the uplink, and the dashboard into one process lifecycle.
package server

import (
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/net/netutil"

	"aprsd/internal/config"
	"aprsd/internal/constants"
	"aprsd/internal/dashboard"
	"aprsd/internal/dedup"
	"aprsd/internal/logger"
	"aprsd/internal/peering"
	"aprsd/internal/router"
	"aprsd/internal/session"
	"aprsd/internal/uplink"
)

type Server struct {
	Config    *config.Config
	Router    *router.Router
	Peers     *peering.Manager
	Uplink    *uplink.Uplink
	Dashboard *dashboard.Dashboard
	Logger    *logger.Logger

	listeners []net.Listener
	wg        sync.WaitGroup
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewServer(cfg *config.Config) (*Server, error) {
	lg, err := logger.NewLogger(cfg.ServerName)
	if err != nil {
		log.Printf("Warning: Failed to initialize file logger: %v", err)
	}

	store := dedup.NewStore(cfg.DedupWindow())
	rt := router.New(cfg.ServerName, store, lg)

	s := &Server{
		Config: cfg,
		Router: rt,
		Logger: lg,
		stop:   make(chan struct{}),
	}

	s.Peers = peering.NewManager(cfg.S2SPeers, rt, lg, cfg.ServerName, cfg.S2SPort)

	if cfg.Uplink != nil {
		s.Uplink = uplink.New(*cfg.Uplink, rt, lg)
	}

	s.Dashboard = dashboard.New(cfg.DashboardPort, rt, s.Peers, s.Uplink)

	return s, nil
}

// Run binds all listeners and blocks until a shutdown signal arrives.
// A port that cannot be bound is fatal.
func (s *Server) Run() error {
	userLn, err := s.listen(s.Config.UserPort, true)
	if err != nil {
		return fmt.Errorf("bind user port: %w", err)
	}
	serverLn, err := s.listen(s.Config.ServerPort, true)
	if err != nil {
		return fmt.Errorf("bind server port: %w", err)
	}
	s2sLn, err := s.listen(s.Config.S2SPort, false)
	if err != nil {
		return fmt.Errorf("bind s2s port: %w", err)
	}

	s.acceptLoop(userLn, s.handleClient)
	s.acceptLoop(serverLn, s.handleClient)
	s.acceptLoop(s2sLn, s.Peers.HandleInbound)

	s.Peers.Start()
	if s.Uplink != nil {
		s.Uplink.Start()
	}
	if err := s.Dashboard.Start(); err != nil {
		log.Printf("Dashboard start error: %v", err)
	}

	log.Printf("🚀 %s %s (%s) listening: users :%d, servers :%d, s2s :%d, dashboard :%d",
		constants.Software, constants.Version, s.Config.ServerName,
		s.Config.UserPort, s.Config.ServerPort, s.Config.S2SPort, s.Config.DashboardPort)
	if s.Logger != nil {
		log.Printf("📝 Logging to %s", s.Logger.Path())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			// Config reload is not supported live; log and keep running.
			log.Printf("🔄 SIGHUP received, restart to apply config changes")
			continue
		}
		log.Println("🛑 Shutting down server...")
		break
	}

	s.Cleanup()
	log.Println("✅ Server stopped")
	return nil
}

func (s *Server) listen(port int, limited bool) (net.Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	if limited {
		ln = netutil.LimitListener(ln, s.Config.MaxClients)
	}
	s.listeners = append(s.listeners, ln)
	return ln, nil
}

func (s *Server) acceptLoop(ln net.Listener, handle func(net.Conn)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-s.stop:
					return
				default:
				}
				log.Printf("Accept error on %s: %v", ln.Addr(), err)
				continue
			}
			go handle(conn)
		}
	}()
}

func (s *Server) handleClient(conn net.Conn) {
	session.Handle(conn, s.Router, s.Logger)
}

func (s *Server) Cleanup() {
	s.stopOnce.Do(func() { close(s.stop) })

	for _, ln := range s.listeners {
		ln.Close()
	}
	s.wg.Wait()

	if err := s.Dashboard.Stop(); err != nil {
		log.Printf("Dashboard shutdown error: %v", err)
	}
	if s.Uplink != nil {
		s.Uplink.Stop()
	}
	s.Peers.Stop()
	s.Router.Close()
	if s.Logger != nil {
		s.Logger.Close()
	}
}
