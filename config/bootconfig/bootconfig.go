/*
 * pmkernel - Boot-time configuration keywords
 *
 * Registers this kernel's configuration-file vocabulary against
 * config/configparser: each keyword's callback runs immediately as
 * LoadConfigFile parses its line, so by the time LoadConfigFile returns
 * every keyword it saw has already taken effect.
 *
 *   FS <path>                 mount <path> as the boot filesystem image
 *   TERMINAL <n>               make virtual terminal n the one visible at boot
 *   DEBUG <component>...       enable trace logging for named kernel components
 *   DEBUGFILE <path>           redirect debug trace output to <path>
 */
package bootconfig

import (
	"errors"
	"os"
	"strconv"

	config "pmkernel/config/configparser"
	"pmkernel/kernel/fs"
	"pmkernel/kernel/terminal"
	"pmkernel/util/debug"
)

func init() {
	config.RegisterOption("FS", setFS)
	config.RegisterOption("TERMINAL", setTerminal)
	config.RegisterModel("DEBUG", config.TypeOptions, setDebug)
	config.RegisterOption("DEBUGFILE", setDebugFile)
}

func setFS(devNum uint16, path string, options []config.Option) error {
	if path == "" {
		return errors.New("FS requires an image path")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	img, err := fs.Load(raw)
	if err != nil {
		return err
	}
	fs.Mount(img)
	return nil
}

func setTerminal(devNum uint16, value string, options []config.Option) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return errors.New("TERMINAL requires a terminal number: " + value)
	}
	terminal.SwitchVisible(n)
	return nil
}

func setDebug(devNum uint16, device string, options []config.Option) error {
	if device != "" {
		debug.Enable(device)
	}
	for _, opt := range options {
		debug.Enable(opt.Name)
	}
	return nil
}

func setDebugFile(devNum uint16, path string, options []config.Option) error {
	if path == "" {
		return errors.New("DEBUGFILE requires a path")
	}
	return debug.SetFile(path)
}
