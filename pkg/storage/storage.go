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

package storage

import (
	kitlog "github.com/go-kit/log"
	"github.com/ortuman/jackal-client/pkg/storage/boltdb"
	measuredrepository "github.com/ortuman/jackal-client/pkg/storage/measured"
	"github.com/ortuman/jackal-client/pkg/storage/repository"
)

// Config defines local cache configuration.
type Config struct {
	// Enabled tells whether roster state should be cached across sessions.
	Enabled bool          `fig:"enabled"`
	BoltDB  boltdb.Config `fig:"boltdb"`
}

// New returns the configured cache repository, or nil if caching is disabled.
func New(cfg Config, logger kitlog.Logger) repository.Repository {
	if !cfg.Enabled {
		return nil
	}
	return measuredrepository.New(boltdb.New(cfg.BoltDB, logger))
}
