// Package probe collects the static ClientInfo attached to every envelope.
package probe

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"nconsole/wsconsole/pkg/proto"
)

// Version is the client library version reported in ClientInfo.
var Version = "0.1.0"

var (
	once   sync.Once
	cached proto.ClientInfo
)

// CurrentClientInfo probes the environment on first use and returns the same
// record for the rest of the process lifetime.
func CurrentClientInfo() proto.ClientInfo {
	once.Do(func() { cached = Collect() })
	return cached
}

// Collect probes the environment without caching.
func Collect() proto.ClientInfo {
	goVersion := strings.TrimPrefix(runtime.Version(), "go")
	agent := fmt.Sprintf("Go/%s (%s)", goVersion, runtime.GOOS)
	return proto.ClientInfo{
		ID:        agent,
		Name:      "Go Client",
		Platform:  "go",
		Version:   Version,
		OS:        runtime.GOOS,
		OSVersion: osVersion(),
		Language:  language(),
		TimeZone:  time.Now().Format("-07:00"),
		UserAgent: agent,
	}
}

func osVersion() string {
	info, err := host.Info()
	if err != nil || info == nil {
		return "unknown"
	}
	if info.PlatformVersion != "" {
		return info.PlatformVersion
	}
	if info.KernelVersion != "" {
		return info.KernelVersion
	}
	return "unknown"
}

func language() string {
	if v := os.Getenv("LANG"); v != "" {
		return v
	}
	return "en-US"
}
