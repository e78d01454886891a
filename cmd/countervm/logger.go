// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ava-labs/avalanchego/utils/logging"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ava-labs/countervm/config"
)

type logWrapper struct {
	logger       logging.Logger
	displayLevel zap.AtomicLevel
	logLevel     zap.AtomicLevel
}

// logFactory builds loggers that write to the console and, when a directory
// is configured, to a rotating file per logger.
type logFactory struct {
	config logging.Config
	lock   sync.RWMutex

	// Logger name --> the logger.
	loggers map[string]logWrapper
}

func newLogFactory(config logging.Config) *logFactory {
	return &logFactory{
		config:  config,
		loggers: make(map[string]logWrapper),
	}
}

// loggingConfig converts the log fields of [c].
func loggingConfig(c *config.Config) (logging.Config, error) {
	var (
		lc  logging.Config
		err error
	)
	lc.LogLevel, err = c.GetLogLevel()
	if err != nil {
		return lc, err
	}
	lc.DisplayLevel, err = c.GetLogDisplayLevel()
	if err != nil {
		return lc, err
	}
	lc.LogFormat, err = c.GetLogFormat()
	if err != nil {
		return lc, err
	}
	lc.Directory = c.LogDir
	lc.DisableWriterDisplaying = c.DisableLogDisplay
	lc.MaxSize = 8  // megabytes
	lc.MaxFiles = 5 // files
	lc.MaxAge = 0   // days
	return lc, nil
}

// Assumes [f.lock] is held
func (f *logFactory) makeLogger(config logging.Config) (logging.Logger, error) {
	if _, ok := f.loggers[config.LoggerName]; ok {
		return nil, fmt.Errorf("logger with name %q already exists", config.LoggerName)
	}

	var consoleWriter io.WriteCloser
	if config.DisableWriterDisplaying {
		consoleWriter = newDiscardWriteCloser()
	} else {
		consoleWriter = os.Stderr
	}
	consoleCore := logging.NewWrappedCore(config.DisplayLevel, consoleWriter, config.LogFormat.ConsoleEncoder())
	consoleCore.WriterDisabled = config.DisableWriterDisplaying
	cores := []logging.WrappedCore{consoleCore}
	w := logWrapper{displayLevel: consoleCore.AtomicLevel}

	if len(config.Directory) > 0 {
		rw := &lumberjack.Logger{
			Filename:   filepath.Join(config.Directory, config.LoggerName+".log"),
			MaxSize:    config.MaxSize,  // megabytes
			MaxAge:     config.MaxAge,   // days
			MaxBackups: config.MaxFiles, // files
			Compress:   config.Compress,
		}
		fileCore := logging.NewWrappedCore(config.LogLevel, rw, config.LogFormat.FileEncoder())
		cores = append(cores, fileCore)
		w.logLevel = fileCore.AtomicLevel
	}

	prefix := config.LogFormat.WrapPrefix(config.MsgPrefix)
	w.logger = logging.NewLogger(prefix, cores...)
	f.loggers[config.LoggerName] = w
	return w.logger, nil
}

func (f *logFactory) Make(name string) (logging.Logger, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	config := f.config
	config.LoggerName = name
	return f.makeLogger(config)
}

func (f *logFactory) Close() {
	f.lock.Lock()
	defer f.lock.Unlock()

	for _, lw := range f.loggers {
		lw.logger.Stop()
	}
	f.loggers = nil
}

type discardWriteCloser struct {
	io.Writer
}

func newDiscardWriteCloser() *discardWriteCloser {
	return &discardWriteCloser{io.Discard}
}

// Close implements the io.Closer interface.
func (*discardWriteCloser) Close() error {
	return nil
}
