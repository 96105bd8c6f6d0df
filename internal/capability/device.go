// Package capability holds thin capability modules: simple value-returning
// pass-throughs to platform services, each producing exactly one terminal
// response per request through the dispatcher.
package capability

import (
	"context"
	"encoding/json"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/0x30/webview-bridge-sub001/internal/dispatch"
	"github.com/0x30/webview-bridge-sub001/internal/wire"
)

// DeviceModule reports host platform information.
type DeviceModule struct{}

func (DeviceModule) Namespace() string { return "device" }

func (m DeviceModule) Methods() map[string]dispatch.Handler {
	return map[string]dispatch.Handler{
		"getInfo":   m.getInfo,
		"getMemory": m.getMemory,
	}
}

type deviceInfo struct {
	Platform  string `json:"platform"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	Hostname  string `json:"hostname"`
	KernelVer string `json:"kernelVersion,omitempty"`
	CPUCount  int    `json:"cpuCount"`
}

func (DeviceModule) getInfo(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, wire.NewError(wire.CodeInternalError, "host info unavailable", err)
	}
	count, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		count = runtime.NumCPU()
	}
	return json.Marshal(deviceInfo{
		Platform:  info.Platform,
		OS:        info.OS,
		Arch:      info.KernelArch,
		Hostname:  info.Hostname,
		KernelVer: info.KernelVersion,
		CPUCount:  count,
	})
}

type memoryInfo struct {
	TotalBytes     uint64  `json:"totalBytes"`
	AvailableBytes uint64  `json:"availableBytes"`
	UsedPercent    float64 `json:"usedPercent"`
}

func (DeviceModule) getMemory(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, wire.NewError(wire.CodeInternalError, "memory info unavailable", err)
	}
	return json.Marshal(memoryInfo{
		TotalBytes:     vm.Total,
		AvailableBytes: vm.Available,
		UsedPercent:    vm.UsedPercent,
	})
}
