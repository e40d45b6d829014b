// Command dummy-engine is a minimal UCI engine for local runs and smoke tests.
// It answers every search with fixed lines starting at e2e4.
package main

import (
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/park285/chess-uci/internal/obslog"
	"github.com/park285/chess-uci/internal/uci/fakeengine"
)

func main() {
	logger, err := obslog.New(loggerOptions())
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	e := &fakeengine.Engine{Name: "Dummy engine", Author: "chess-uci"}
	if err := e.Serve(os.Stdin, os.Stdout); err != nil {
		logger.Error("dummy engine stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// loggerOptions keeps logs on stderr; stdout carries the protocol.
func loggerOptions() obslog.Options {
	opt := obslog.OptionsFromEnv()
	opt.Console = true
	opt.Output = os.Stderr
	opt.ToFile = false
	return opt
}
