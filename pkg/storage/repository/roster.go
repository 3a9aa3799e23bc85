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

package repository

import (
	"context"

	rostermodel "github.com/ortuman/jackal-client/pkg/model/roster"
)

// Roster defines cached roster repository operations.
type Roster interface {
	// UpsertRoster replaces the whole cached roster of account with doc.
	UpsertRoster(ctx context.Context, account string, doc rostermodel.Document) error

	// FetchRoster fetches the cached roster of account. A nil document is returned if there is none.
	FetchRoster(ctx context.Context, account string) (*rostermodel.Document, error)

	// DeleteRoster deletes the cached roster of account.
	DeleteRoster(ctx context.Context, account string) error
}
