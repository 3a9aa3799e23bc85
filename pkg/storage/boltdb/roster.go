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

package boltdb

import (
	"context"
	"fmt"

	rostermodel "github.com/ortuman/jackal-client/pkg/model/roster"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

const versionKey = "ver"

type rosterItem struct {
	Subscription string   `msgpack:"subscription"`
	Ask          string   `msgpack:"ask,omitempty"`
	Name         string   `msgpack:"name,omitempty"`
	Approved     bool     `msgpack:"approved,omitempty"`
	Groups       []string `msgpack:"groups,omitempty"`
}

func (ri *rosterItem) MarshalBinary() ([]byte, error) {
	type alias rosterItem
	return msgpack.Marshal((*alias)(ri))
}

func (ri *rosterItem) UnmarshalBinary(data []byte) error {
	type alias rosterItem
	return msgpack.Unmarshal(data, (*alias)(ri))
}

type rosterVersion struct {
	Ver string `msgpack:"ver"`
}

func (rv *rosterVersion) MarshalBinary() ([]byte, error) {
	type alias rosterVersion
	return msgpack.Marshal((*alias)(rv))
}

func (rv *rosterVersion) UnmarshalBinary(data []byte) error {
	type alias rosterVersion
	return msgpack.Unmarshal(data, (*alias)(rv))
}

type boltDBRosterRep struct {
	tx *bolt.Tx
}

func newRosterRep(tx *bolt.Tx) *boltDBRosterRep {
	return &boltDBRosterRep{tx: tx}
}

// UpsertRoster replaces the whole cached roster of account with doc.
func (r *boltDBRosterRep) UpsertRoster(ctx context.Context, account string, doc rostermodel.Document) error {
	if err := r.DeleteRoster(ctx, account); err != nil {
		return err
	}
	for jd, di := range doc.Items {
		op := upsertKeyOp{
			tx:     r.tx,
			bucket: rosterItemsBucketKey(account),
			key:    jd,
			obj: &rosterItem{
				Subscription: di.Subscription,
				Ask:          di.Ask,
				Name:         di.Name,
				Approved:     di.Approved,
				Groups:       di.Groups,
			},
		}
		if err := op.do(); err != nil {
			return err
		}
	}
	if len(doc.Ver) == 0 {
		return nil
	}
	op := upsertKeyOp{
		tx:     r.tx,
		bucket: rosterVersionBucketKey(account),
		key:    versionKey,
		obj:    &rosterVersion{Ver: doc.Ver},
	}
	return op.do()
}

// FetchRoster returns the cached roster of account, or nil if there is none.
func (r *boltDBRosterRep) FetchRoster(_ context.Context, account string) (*rostermodel.Document, error) {
	itemsExist := bucketExistsOp{tx: r.tx, bucket: rosterItemsBucketKey(account)}.do()
	verExists := bucketExistsOp{tx: r.tx, bucket: rosterVersionBucketKey(account)}.do()
	if !itemsExist && !verExists {
		return nil, nil
	}
	doc := &rostermodel.Document{
		Items: make(map[string]rostermodel.DocumentItem),
	}
	iterOp := iterKeysOp{
		tx:     r.tx,
		bucket: rosterItemsBucketKey(account),
		iterFn: func(k, b []byte) error {
			var ri rosterItem
			if err := ri.UnmarshalBinary(b); err != nil {
				return err
			}
			doc.Items[string(k)] = rostermodel.DocumentItem{
				Subscription: ri.Subscription,
				Ask:          ri.Ask,
				Name:         ri.Name,
				Approved:     ri.Approved,
				Groups:       ri.Groups,
			}
			return nil
		},
	}
	if err := iterOp.do(); err != nil {
		return nil, err
	}
	fetchOp := fetchKeyOp{
		tx:     r.tx,
		bucket: rosterVersionBucketKey(account),
		key:    versionKey,
		obj:    &rosterVersion{},
	}
	obj, err := fetchOp.do()
	if err != nil {
		return nil, err
	}
	if obj != nil {
		doc.Ver = obj.(*rosterVersion).Ver
	}
	return doc, nil
}

// DeleteRoster removes the cached roster of account.
func (r *boltDBRosterRep) DeleteRoster(_ context.Context, account string) error {
	op := delBucketOp{
		tx:     r.tx,
		bucket: rosterItemsBucketKey(account),
	}
	if err := op.do(); err != nil {
		return err
	}
	op = delBucketOp{
		tx:     r.tx,
		bucket: rosterVersionBucketKey(account),
	}
	return op.do()
}

// UpsertRoster replaces the whole cached roster of account with doc.
func (r *Repository) UpsertRoster(ctx context.Context, account string, doc rostermodel.Document) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return newRosterRep(tx).UpsertRoster(ctx, account, doc)
	})
}

// FetchRoster returns the cached roster of account, or nil if there is none.
func (r *Repository) FetchRoster(ctx context.Context, account string) (doc *rostermodel.Document, err error) {
	err = r.db.View(func(tx *bolt.Tx) error {
		doc, err = newRosterRep(tx).FetchRoster(ctx, account)
		return err
	})
	return
}

// DeleteRoster removes the cached roster of account.
func (r *Repository) DeleteRoster(ctx context.Context, account string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return newRosterRep(tx).DeleteRoster(ctx, account)
	})
}

func rosterVersionBucketKey(account string) string {
	return fmt.Sprintf("roster:ver:%s", account)
}

func rosterItemsBucketKey(account string) string {
	return fmt.Sprintf("roster:items:%s", account)
}
