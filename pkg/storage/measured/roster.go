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

package measuredrepository

import (
	"context"
	"time"

	rostermodel "github.com/ortuman/jackal-client/pkg/model/roster"
	"github.com/ortuman/jackal-client/pkg/storage/repository"
)

type measuredRosterRep struct {
	rep repository.Roster
}

func (m *measuredRosterRep) UpsertRoster(ctx context.Context, account string, doc rostermodel.Document) error {
	t0 := time.Now()
	err := m.rep.UpsertRoster(ctx, account, doc)
	reportOpMetric(upsertOp, time.Since(t0).Seconds(), err == nil)
	return err
}

func (m *measuredRosterRep) FetchRoster(ctx context.Context, account string) (doc *rostermodel.Document, err error) {
	t0 := time.Now()
	doc, err = m.rep.FetchRoster(ctx, account)
	reportOpMetric(fetchOp, time.Since(t0).Seconds(), err == nil)
	return
}

func (m *measuredRosterRep) DeleteRoster(ctx context.Context, account string) error {
	t0 := time.Now()
	err := m.rep.DeleteRoster(ctx, account)
	reportOpMetric(deleteOp, time.Since(t0).Seconds(), err == nil)
	return err
}
