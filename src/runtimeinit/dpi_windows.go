//go:build windows

package runtimeinit

import (
	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

// enableDPIAwareness makes capture and pointer coordinates agree on scaled
// displays.
func enableDPIAwareness(logger *zap.Logger) {
	const processPerMonitorDPIAware = 2

	setProcessDpiAwareness := windows.NewLazySystemDLL("Shcore.dll").NewProc("SetProcessDpiAwareness")
	if err := setProcessDpiAwareness.Find(); err == nil {
		ret, _, _ := setProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware))
		if ret == 0 {
			logger.Debug("per-monitor DPI awareness set")
		} else {
			logger.Warn("failed to set per-monitor DPI awareness", zap.Uintptr("code", ret))
		}
		return
	}

	setProcessDPIAware := windows.NewLazySystemDLL("user32.dll").NewProc("SetProcessDPIAware")
	if err := setProcessDPIAware.Find(); err != nil {
		logger.Warn("no DPI awareness API available")
		return
	}
	if ret, _, _ := setProcessDPIAware.Call(); ret != 0 {
		logger.Debug("system DPI awareness set")
	} else {
		logger.Warn("failed to set system DPI awareness")
	}
}
