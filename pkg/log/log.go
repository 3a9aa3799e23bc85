// Copyright 2023 The jackal Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	debugLevel   = "debug"
	infoLevel    = "info"
	warningLevel = "warn"
	errorLevel   = "error"
	offLevel     = "off"
)

const jsonFormat = "json"

// NewDefaultLogger creates a new go-kit logger writing to stderr with the configured level and format.
func NewDefaultLogger(lv, format string) log.Logger {
	return NewLogger(os.Stderr, lv, format)
}

// NewLogger creates a new go-kit logger writing to w.
func NewLogger(w io.Writer, lv, format string) log.Logger {
	var logger log.Logger

	sw := log.NewSyncWriter(w)
	if format == jsonFormat {
		logger = log.NewJSONLogger(sw)
	} else {
		logger = log.NewLogfmtLogger(sw)
	}
	return log.With(level.NewFilter(logger, levelOption(lv)), "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
}

func levelOption(lv string) level.Option {
	switch lv {
	case debugLevel:
		return level.AllowDebug()
	case infoLevel:
		return level.AllowInfo()
	case warningLevel:
		return level.AllowWarn()
	case errorLevel:
		return level.AllowError()
	case offLevel:
		return level.AllowNone()
	default:
		return level.AllowAll()
	}
}
