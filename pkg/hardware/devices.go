package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// SerialDevices lists serial/USB devices a radio might be attached to
func SerialDevices() []string {
	devices := []string{}

	switch runtime.GOOS {
	case "linux":
		devices = globAll(
			"/dev/ttyUSB*",
			"/dev/ttyACM*",
			"/dev/ttyAMA*",
			"/dev/serial/by-id/*",
		)

	case "darwin":
		devices = globAll(
			"/dev/tty.usb*",
			"/dev/tty.SLAB_*",        // Silicon Labs CP210x, IC-7300/IC-7610 USB
			"/dev/tty.wchusbserial*", // WCH CH340
			"/dev/tty.usbmodem*",     // USB CDC ACM devices
		)

	case "windows":
		// COM ports cannot be globbed; offer the usual range
		for i := 1; i <= 20; i++ {
			devices = append(devices, fmt.Sprintf("COM%d", i))
		}
	}

	return devices
}

func globAll(patterns ...string) []string {
	devices := []string{}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, m := range matches {
			if _, err := os.Stat(m); err == nil {
				devices = append(devices, m)
			}
		}
	}
	return devices
}
