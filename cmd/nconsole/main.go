package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"nconsole/wsconsole/pkg/config"
	"nconsole/wsconsole/pkg/console"
	"nconsole/wsconsole/pkg/logging"
	"nconsole/wsconsole/pkg/probe"
	"nconsole/wsconsole/pkg/proto"
)

var version = "0.1.0"

func main() {
	cfgPath := flag.String("config", config.DefaultClientPath, "client config file (json, yaml or toml); env NCONSOLE_* overrides it")
	uri := flag.String("uri", "", "collector address, e.g. 10.0.0.5, localhost:9090, wss://logs.example.com (env NCONSOLE_URI or config)")
	logType := flag.String("type", "log", "message type: log|info|warn|error")
	group := flag.String("group", "", "wrap all messages in a group with this label")
	collapsed := flag.Bool("collapsed", false, "open -group collapsed")
	watch := flag.Bool("watch", false, "reload the config file when it changes")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("nconsole", version)
		return
	}
	closer := logging.Setup("nconsole")
	defer closer.Close()

	lt := proto.LogType(*logType)
	switch lt {
	case proto.LogLog, proto.LogInfo, proto.LogWarn, proto.LogError:
	default:
		log.Fatalf("unknown -type %q (want log, info, warn or error)", *logType)
	}

	cc, err := config.LoadClientConfig(*cfgPath)
	if err != nil {
		log.Printf("config load warning: %v", err)
	}
	probe.Version = version
	client := console.Init(console.Options(cc)...)
	if *uri != "" {
		client.SetEndpoint(*uri)
	}
	client.SetEnabled(cc.IsEnabled())
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watch {
		cw, err := config.NewClientWatcher(*cfgPath, 0)
		if err != nil {
			log.Printf("watch config: %v", err)
		} else {
			go cw.Run(ctx, keepURI(*uri, client.Apply))
		}
	}
	if os.Getenv("NCONSOLE_DEBUG") != "" {
		log.Printf("[BOOT] endpoint=%s enabled=%v version=%s", client.Endpoint(), client.Enabled(), version)
	}

	if *group != "" {
		if *collapsed {
			client.GroupCollapsed(*group)
		} else {
			client.Group(*group)
		}
		defer client.GroupEnd()
	}

	if flag.NArg() > 0 {
		emit(client, lt, parseArgs(flag.Args()))
		return
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		sc.Buffer(make([]byte, 64*1024), 1<<20)
		for sc.Scan() {
			lines <- sc.Text()
		}
		if err := sc.Err(); err != nil {
			log.Printf("read stdin: %v", err)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if line == "" {
				continue
			}
			emit(client, lt, []console.Arg{parseValue(line)})
		}
	}
}

func emit(c *console.Client, lt proto.LogType, args []console.Arg) {
	switch lt {
	case proto.LogInfo:
		c.Info(args...)
	case proto.LogWarn:
		c.Warn(args...)
	case proto.LogError:
		c.Error(args...)
	default:
		c.Log(args...)
	}
}

// keepURI makes reloads keep the endpoint given with -uri.
func keepURI(flagURI string, apply func(config.ClientConfig)) func(config.ClientConfig) {
	if flagURI == "" {
		return apply
	}
	return func(cfg config.ClientConfig) {
		cfg.URI = flagURI
		apply(cfg)
	}
}
