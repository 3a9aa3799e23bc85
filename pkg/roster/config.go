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

package roster

import "time"

// Config defines roster engine configuration.
type Config struct {
	// RequestTimeout defines roster request timeout used when the caller context carries no deadline.
	RequestTimeout time.Duration `fig:"request_timeout" default:"15s"`

	// Versioning tells whether roster versioning should be used when the server supports it.
	Versioning bool `fig:"versioning"`
}
