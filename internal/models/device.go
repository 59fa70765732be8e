package models

import (
	"os/exec"
	"strings"
)

// Device is the compute device recognition runs on.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// DetectDevice resolves a configured preference ("auto", "cpu", "cuda") to a
// concrete device. For "auto", probe reports whether an accelerator is
// present; a nil probe looks for nvidia-smi on PATH.
func DetectDevice(preference string, probe func() bool) Device {
	switch strings.ToLower(strings.TrimSpace(preference)) {
	case "cpu":
		return DeviceCPU
	case "cuda", "gpu":
		return DeviceCUDA
	}
	if probe == nil {
		probe = hasNvidiaSMI
	}
	if probe() {
		return DeviceCUDA
	}
	return DeviceCPU
}

func hasNvidiaSMI() bool {
	_, err := exec.LookPath("nvidia-smi")
	return err == nil
}
