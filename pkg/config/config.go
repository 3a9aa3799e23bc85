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

package config

import (
	"path/filepath"

	"github.com/kkyr/fig"
	"github.com/ortuman/jackal-client/pkg/muc"
	"github.com/ortuman/jackal-client/pkg/roster"
	"github.com/ortuman/jackal-client/pkg/storage"
	"github.com/ortuman/jackal-client/pkg/stream"
)

// LoggerConfig defines logger configuration.
type LoggerConfig struct {
	Level  string `fig:"level" default:"info"`
	Format string `fig:"format" default:"logfmt"`
}

// Config defines client configuration.
type Config struct {
	Logger LoggerConfig `fig:"logger"`

	// HTTPPort is the port metrics are exposed on. Zero disables the HTTP server.
	HTTPPort int `fig:"http_port"`

	Stream  stream.Config `fig:"stream"`
	Roster  roster.Config `fig:"roster"`
	MUC     muc.Config    `fig:"muc"`
	Storage storage.Config `fig:"storage"`
}

// Load reads configuration from configFile, filling every missing value with its default.
func Load(configFile string) (*Config, error) {
	// fig can't tell an explicit false from a missing value, so true defaults are preset.
	cfg := Config{
		Roster: roster.Config{Versioning: true},
		MUC: muc.Config{
			AutoRejoin: true,
			SelfPing:   muc.SelfPingConfig{Enabled: true},
		},
		Storage: storage.Config{Enabled: true},
	}
	file := filepath.Base(configFile)
	dir := filepath.Dir(configFile)

	err := fig.Load(&cfg, fig.File(file), fig.Dirs(dir))
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
