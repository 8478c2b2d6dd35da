// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package logging configures the process-wide logrus logger: a prefixed,
// TTY-aware console formatter, and optional rotated file output.
package logging

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/natefinch/lumberjack.v2"
)

// rotation settings for the optional file sink. These match the values
// the source's operators used in practice; a didactic node does not need
// them configurable beyond the path itself.
const (
	maxSizeMegabytes = 10
	maxBackups       = 3
	maxAgeDays       = 28
)

// Configure sets the package-wide logrus level and output. level must be
// one accepted by logrus.ParseLevel ("debug", "info", "warn", ...). When
// path is non-empty, log lines are written both to the console and to a
// rotated file at path.
func Configure(level, path string) error {
	parsed, err := logger.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "logging: parse level")
	}
	logger.SetLevel(parsed)

	logger.SetFormatter(&prefixed.TextFormatter{
		ForceColors:     isatty.IsTerminal(os.Stdout.Fd()),
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	var out io.Writer = colorable.NewColorableStdout()
	if path != "" {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMegabytes,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		})
	}
	logger.SetOutput(out)
	return nil
}
