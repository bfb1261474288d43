package config

// Set at link time:
//
//	go build -ldflags "-X meterjob/internal/config.version=1.4.0 \
//	    -X meterjob/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X meterjob/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo returns the linker-injected build metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

// UserAgent renders the User-Agent sent on outbound HTTP calls.
func (b BuildInfo) UserAgent(service string) string {
	return service + "/" + b.Version
}
