/*
 * pmkernel - Main process.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"pmkernel/command/reader"
	config "pmkernel/config/configparser"
	"pmkernel/console"
	"pmkernel/kernel/exception"
	"pmkernel/kernel/hostio"
	"pmkernel/kernel/idt"
	"pmkernel/kernel/kconst"
	"pmkernel/kernel/paging"
	"pmkernel/kernel/pic"
	"pmkernel/kernel/rtc"
	"pmkernel/kernel/scheduler"
	"pmkernel/kernel/selftest"
	kernelsyscall "pmkernel/kernel/syscall"
	"pmkernel/kernel/terminal"
	logger "pmkernel/util/logger"

	_ "pmkernel/config/bootconfig"
	_ "pmkernel/kernel/userprog"
)

var Logger *slog.Logger

func main() {
	optConfig := getopt.StringLong("config", 'c', "pmkernel.cfg", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.BoolLong("debug", 'd', "Log debug level messages")
	optHostTerm := getopt.IntLong("host-terminal", 't', -1, "Attach the local keyboard to virtual terminal N instead of running the monitor")
	optSelftest := getopt.BoolLong("selftest", 's', "Run the boot self-test and exit")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if optLogFile != nil && *optLogFile != "" {
		file, _ = os.Create(*optLogFile)
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	Logger = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, optDebug))
	slog.SetDefault(Logger)

	Logger.Info("pmkernel starting")

	pic.Init()
	pic.Unmask(1) // keyboard
	exception.Install()
	kernelsyscall.Install()
	idt.Loaded()

	paging.Init()
	terminal.Init()
	rtc.Start()

	if optConfig != nil && *optConfig != "" {
		if _, err := os.Stat(*optConfig); err == nil {
			if err := config.LoadConfigFile(*optConfig); err != nil {
				Logger.Error("configuration error", "error", err)
				os.Exit(1)
			}
		} else {
			Logger.Warn("configuration file not found, booting with defaults", "path", *optConfig)
		}
	}

	if *optSelftest {
		if err := selftest.Run(); err != nil {
			Logger.Error("self-test failed", "error", err)
			os.Exit(1)
		}
		Logger.Info("self-test passed")
		os.Exit(0)
	}

	scheduler.Boot(kconst.MaxTerminals)

	if err := console.Start(kconst.MaxTerminals); err != nil {
		Logger.Error("console listeners failed to start", "error", err)
	}

	var host *hostio.Host
	if *optHostTerm >= 0 {
		host = hostio.New(*optHostTerm)
		if err := host.Start(); err != nil {
			Logger.Warn("host keyboard attach failed, falling back to monitor", "error", err)
			host = nil
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if host == nil {
		go reader.ConsoleReader()
	}

	<-sigChan
	Logger.Info("shutting down")
	if host != nil {
		host.Stop()
	}
	console.Stop()
	rtc.Stop()
	scheduler.Stop()
	Logger.Info("pmkernel stopped")
}
