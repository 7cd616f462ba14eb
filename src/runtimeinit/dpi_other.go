//go:build !windows

package runtimeinit

import "go.uber.org/zap"

func enableDPIAwareness(*zap.Logger) {}
