package config

import (
	"io"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/json"
)

// SetupLogging installs the apex handler: human readable for the CLI, JSON
// lines for the server.
func SetupLogging(w io.Writer, level string, asJSON bool) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	if asJSON {
		log.SetHandler(json.New(w))
	} else {
		log.SetHandler(cli.New(w))
	}
	log.SetLevel(lvl)
	return nil
}
