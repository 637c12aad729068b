package audio

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// ErrPickerAborted is returned when the user leaves the picker with Ctrl+C or q.
var ErrPickerAborted = errors.New("device selection aborted")

// SelectDevice shows an arrow-key picker on the terminal. The first row is
// the system default and selecting it returns a nil device.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, errors.New("no capture devices found")
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	rows := make([]string, 0, len(devices)+1)
	rows = append(rows, "System default")
	for _, d := range devices {
		label := d.Name
		if IsBluetooth(d.Name) {
			label += " \x1b[33m[bluetooth: reduced quality]\x1b[0m"
		}
		rows = append(rows, label)
	}

	cursor := 0
	render := func(first bool) {
		if !first {
			fmt.Printf("\x1b[%dA", len(rows)+2)
		}
		fmt.Print("\r\x1b[J")
		fmt.Print("Select input device (up/down or j/k, Enter to confirm):\r\n\r\n")
		for i, row := range rows {
			if i == cursor {
				fmt.Printf("  \x1b[1;36m> %s\x1b[0m\r\n", row)
			} else {
				fmt.Printf("    %s\r\n", row)
			}
		}
	}
	render(true)

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		switch {
		case n == 1 && buf[0] == '\r':
			fmt.Print("\r\n")
			if cursor == 0 {
				return nil, nil
			}
			return &devices[cursor-1], nil
		case n == 1 && (buf[0] == 3 || buf[0] == 'q'):
			fmt.Print("\r\n")
			return nil, ErrPickerAborted
		case (n == 1 && buf[0] == 'k') || (n == 3 && buf[0] == 0x1b && buf[2] == 'A'):
			if cursor > 0 {
				cursor--
			}
		case (n == 1 && buf[0] == 'j') || (n == 3 && buf[0] == 0x1b && buf[2] == 'B'):
			if cursor < len(rows)-1 {
				cursor++
			}
		}
		render(false)
	}
}
