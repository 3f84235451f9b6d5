package gologger

import (
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

const RootLoggerName = "hawkauth"

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ComponentName returns "hawkauth.<component>", or the root name for an
// empty component.
func ComponentName(component string) string {
	component = strings.Trim(strings.TrimSpace(component), ".")
	if component == "" {
		return RootLoggerName
	}
	return RootLoggerName + "." + component
}

// ForComponent resolves the logger a sub-package (transport, store) should
// log through.
func ForComponent(component string, provider glog.LoggerProvider, logger glog.Logger) glog.Logger {
	_, resolved := Resolve(ComponentName(component), provider, logger)
	return glog.Ensure(resolved)
}
