package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	svc "github.com/kardianos/service"

	"nconsole/wsconsole/pkg/collector"
	"nconsole/wsconsole/pkg/config"
	"nconsole/wsconsole/pkg/logging"
)

var version = "0.1.0"

// program runs the collector in the foreground or under the OS service manager.
type program struct {
	cfg config.ServerConfig
	hub *collector.Hub
	srv *http.Server
}

func (p *program) Start(s svc.Service) error {
	p.hub = collector.NewHub(p.cfg.MaxEvents, p.cfg.Quiet)
	p.srv = &http.Server{Addr: p.cfg.Addr, Handler: p.hub.Handler(), ReadHeaderTimeout: 10 * time.Second}
	log.Printf("collector %s listening on %s (tls=%v, max_events=%d)", version, p.cfg.Addr, p.cfg.TLS.Enable, p.cfg.MaxEvents)
	go func() {
		var err error
		if p.cfg.TLS.Enable {
			err = p.srv.ListenAndServeTLS(p.cfg.TLS.CertFile, p.cfg.TLS.KeyFile)
		} else {
			err = p.srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("collector stopped: %v", err)
		}
	}()
	return nil
}

func (p *program) Stop(s svc.Service) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.hub.Close()
	return p.srv.Shutdown(ctx)
}

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config/collector.json", "collector config file (json, yaml or toml), priority: env > file > default")
	svcCmd := flag.String("service", "", "service control: install|uninstall|start|stop|run")
	svcName := flag.String("svcname", "NConsoleCollector", "service name")
	flag.Parse()

	closer := logging.Setup("collector")
	defer closer.Close()
	if os.Getenv("NCONSOLE_DEBUG") != "" {
		log.Printf("[BOOT] debug on, version=%s", version)
	}

	cfg, err := config.LoadServerConfig(cfgPath)
	if err != nil {
		log.Printf("config load warning: %v", err)
		// continue with defaults/env
		cfg, _ = config.LoadServerConfig("")
	}

	s, err := newService(*svcName, cfgPath, &program{cfg: cfg})
	if err != nil {
		log.Fatalf("service init failed: %v", err)
	}
	if *svcCmd != "" {
		if err := handleServiceCmd(s, *svcCmd); err != nil {
			log.Fatalf("service %s failed: %v", *svcCmd, err)
		}
		return
	}
	// Run blocks until interrupted in a terminal or stopped by the service manager.
	if err := s.Run(); err != nil {
		log.Fatalf("collector: %v", err)
	}
}

func newService(name, cfgPath string, p *program) (svc.Service, error) {
	args := []string{}
	if abs, err := filepath.Abs(cfgPath); err == nil {
		args = append(args, "-config", abs)
	}
	cfg := &svc.Config{
		Name:        name,
		DisplayName: name,
		Description: "Remote console log collector",
		Arguments:   args,
		Option:      map[string]interface{}{"Restart": "on-failure", "RunAtLoad": true, "StartType": "automatic"},
	}
	return svc.New(p, cfg)
}

func handleServiceCmd(s svc.Service, cmd string) error {
	switch strings.ToLower(cmd) {
	case "install":
		return s.Install()
	case "uninstall":
		return s.Uninstall()
	case "start":
		return s.Start()
	case "stop":
		return s.Stop()
	case "run":
		return s.Run()
	default:
		return fmt.Errorf("unknown service command: %s", cmd)
	}
}
