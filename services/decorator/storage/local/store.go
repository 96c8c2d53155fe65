// Copyright (C) 2025 the treedeck authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package local

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/export"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/storage"
)

// Key namespaces inside the shared database. The device-local backend and
// the reference server persistence never see each other's keys.
const (
	localKeyPrefix  = "treedeck:envelope:"
	serverKeyPrefix = "treedeck:server:tree:"
)

// Store persists export envelopes in BadgerDB under one key namespace.
//
// Description:
//
//	Store implements the storage.Backend contract. The same type backs two
//	roles with different namespaces and identifier kinds: the device-local
//	fallback backend (NewStore) and the reference server's persistence
//	(NewServerStore). Identifiers are generated from random uuids, giving
//	enough entropy that independent sessions sharing one storage medium
//	cannot realistically collide.
//
// Thread Safety: Safe for concurrent use; BadgerDB transactions provide
// isolation.
type Store struct {
	db        *badger.DB
	keyPrefix string
	idPrefix  string
	kind      storage.IdentifierKind
}

// NewStore creates the device-local backend, issuing local_ identifiers.
func NewStore(db *badger.DB) (*Store, error) {
	return newStore(db, localKeyPrefix, storage.LocalPrefix, storage.KindLocal)
}

// NewServerStore creates the reference server's persistence layer,
// issuing server-side tree_ identifiers.
func NewServerStore(db *badger.DB) (*Store, error) {
	return newStore(db, serverKeyPrefix, storage.RemotePrefix, storage.KindRemote)
}

func newStore(db *badger.DB, keyPrefix, idPrefix string, kind storage.IdentifierKind) (*Store, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	return &Store{
		db:        db,
		keyPrefix: keyPrefix,
		idPrefix:  idPrefix,
		kind:      kind,
	}, nil
}

// Save persists an envelope under a freshly generated identifier.
//
// Description:
//
//	Serializes the envelope to its canonical JSON and writes it in one
//	transaction. A storage-medium failure (disk full, database closed) is
//	reported as an error, never swallowed.
//
// Outputs:
//
//	storage.Identifier - The identifier the envelope was stored under.
//	error - Non-nil if the envelope is invalid or the write fails.
func (s *Store) Save(ctx context.Context, env *export.ExportEnvelope) (storage.Identifier, error) {
	if err := ctx.Err(); err != nil {
		return storage.Identifier{}, fmt.Errorf("context cancelled: %w", err)
	}

	data, err := export.MarshalEnvelope(env)
	if err != nil {
		return storage.Identifier{}, err
	}

	id := storage.Identifier{
		Kind:  s.kind,
		Value: s.idPrefix + uuid.NewString(),
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(s.keyPrefix+id.Value), data)
	})
	if err != nil {
		return storage.Identifier{}, fmt.Errorf("save envelope %s: %w", id.Value, err)
	}
	return id, nil
}

// Load returns the envelope stored under an identifier, or (nil, nil) if
// the identifier is unknown. Identifiers of the wrong kind are unknown by
// definition; the namespaces never overlap.
func (s *Store) Load(ctx context.Context, id storage.Identifier) (*export.ExportEnvelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	if id.Kind != s.kind || id.IsZero() {
		return nil, nil
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(s.keyPrefix + id.Value))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load envelope %s: %w", id.Value, err)
	}

	env, err := export.UnmarshalEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("decode stored envelope %s: %w", id.Value, err)
	}
	return env, nil
}

// Delete removes the envelope stored under an identifier. Deleting an
// unknown identifier is a no-op.
func (s *Store) Delete(ctx context.Context, id storage.Identifier) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if id.Kind != s.kind || id.IsZero() {
		return nil
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(s.keyPrefix + id.Value))
	})
	if err != nil {
		return fmt.Errorf("delete envelope %s: %w", id.Value, err)
	}
	return nil
}

// List returns summaries of every envelope in this store's namespace.
// Entries that no longer decode are skipped rather than failing the list.
func (s *Store) List(ctx context.Context) ([]storage.SavedTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	var trees []storage.SavedTree
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(s.keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			idValue := string(item.Key()[len(s.keyPrefix):])
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			env, err := export.UnmarshalEnvelope(data)
			if err != nil {
				continue // skip undecodable entries
			}
			trees = append(trees, storage.SavedTree{
				ID:            storage.Identifier{Kind: s.kind, Value: idValue},
				Name:          env.Metadata.Name,
				OrnamentCount: len(env.Ornaments),
				SavedAt:       env.ExportedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list envelopes: %w", err)
	}
	return trees, nil
}

// Compile-time interface checks.
var (
	_ storage.Backend = (*Store)(nil)
	_ storage.Lister  = (*Store)(nil)
)
