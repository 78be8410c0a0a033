package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Device is an inference device in torch notation ("cpu", "cuda:0", "mps").
type Device string

// DeviceCPU runs inference on the host CPU.
const DeviceCPU Device = "cpu"

// ParseDevice accepts a bare GPU ordinal ("0"), a torch device string or "cpu".
func ParseDevice(s string) (Device, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "" || s == "cpu" || s == "-1":
		return DeviceCPU, nil
	case s == "mps" || s == "cuda":
		return Device(s), nil
	case strings.HasPrefix(s, "cuda:"):
		if _, err := ordinal(strings.TrimPrefix(s, "cuda:")); err != nil {
			return "", err
		}
		return Device(s), nil
	default:
		n, err := ordinal(s)
		if err != nil {
			return "", err
		}
		return Device(fmt.Sprintf("cuda:%d", n)), nil
	}
}

func ordinal(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, Errorf(KindModelLoad, "parse device", "invalid device %q", s)
	}
	return n, nil
}

func (d Device) String() string {
	return string(d)
}
