package version

import (
	"runtime"
	"time"
)

// Set at build time with -ldflags "-X github.com/NeuralTrust/EdgeRouter/pkg/version.Commit=..."
var (
	Version   = "0.4.2"
	Commit    = "none"
	BuildDate = "unknown"
)

const AppName = "edge-router"

var startedAt = time.Now()

type Info struct {
	AppName   string `json:"app_name"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Uptime    string `json:"uptime"`
}

func GetInfo() Info {
	return Info{
		AppName:   AppName,
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Uptime:    time.Since(startedAt).Truncate(time.Second).String(),
	}
}
