// Copyright (C) 2025 the treedeck authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package persist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/export"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/quota"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/sharecode"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/storage"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/storage/local"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/tree"
)

// failingBackend simulates an unreachable remote store.
type failingBackend struct{}

func (failingBackend) Save(ctx context.Context, env *export.ExportEnvelope) (storage.Identifier, error) {
	return storage.Identifier{}, errors.New("network unreachable")
}

func (failingBackend) Load(ctx context.Context, id storage.Identifier) (*export.ExportEnvelope, error) {
	return nil, errors.New("network unreachable")
}

// panickyBackend simulates a misbehaving collaborator.
type panickyBackend struct{}

func (panickyBackend) Save(ctx context.Context, env *export.ExportEnvelope) (storage.Identifier, error) {
	panic("collaborator bug")
}

func (panickyBackend) Load(ctx context.Context, id storage.Identifier) (*export.ExportEnvelope, error) {
	panic("collaborator bug")
}

func testLocalBackend(t *testing.T) *local.Store {
	t.Helper()
	db, err := local.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := local.NewStore(db)
	require.NoError(t, err)
	return store
}

func decoratedStore(t *testing.T, u *quota.User) *tree.Store {
	t.Helper()
	s := tree.NewStore()
	_, err := s.AddOrnament(u, tree.OrnamentDraft{
		Type:     tree.OrnamentBall,
		Color:    "#ff0000",
		Position: tree.Vector3{Y: 1},
		Scale:    1,
	})
	require.NoError(t, err)
	return s
}

// TestSaveToCloud_FallbackGuarantee: with the remote always failing, the
// save still yields a valid identifier and the envelope is recoverable
// from local storage.
func TestSaveToCloud_FallbackGuarantee(t *testing.T) {
	localBackend := testLocalBackend(t)
	orch, err := NewOrchestrator(failingBackend{}, localBackend, nil)
	require.NoError(t, err)

	user := quota.NewUser("u1", "Alice", quota.TierFree)
	sess := NewSession(user)
	store := decoratedStore(t, user)
	ctx := context.Background()

	id, err := orch.SaveToCloud(ctx, sess, store, &export.EnvelopeMetadata{Name: "rescued"})
	require.NoError(t, err, "fallback save must not fail when local storage works")
	assert.Equal(t, storage.KindLocal, id.Kind, "fallback identifier must be in the local namespace")
	assert.True(t, strings.HasPrefix(id.Value, storage.LocalPrefix))
	require.NotNil(t, sess.CloudID)
	assert.Equal(t, id, *sess.CloudID)

	// The work is recoverable through the explicit local path.
	fresh := tree.NewStore()
	ok := orch.LoadFromStorage(ctx, sess, fresh, id)
	require.True(t, ok)
	assert.Equal(t, 1, fresh.OrnamentCount())

	loaded := fresh.Ornaments()
	assert.Equal(t, tree.OrnamentBall, loaded[0].Type)
	assert.Equal(t, "#ff0000", loaded[0].Color)
}

func TestSaveToCloud_RemoteSuccess(t *testing.T) {
	db, err := local.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// A server-store stand-in gives remote-namespace ids without HTTP.
	remoteBackend, err := local.NewServerStore(db)
	require.NoError(t, err)
	localBackend, err := local.NewStore(db)
	require.NoError(t, err)

	orch, err := NewOrchestrator(remoteBackend, localBackend, nil)
	require.NoError(t, err)

	user := quota.NewUser("u1", "Alice", quota.TierFree)
	sess := NewSession(user)
	store := decoratedStore(t, user)

	id, err := orch.SaveToCloud(context.Background(), sess, store, nil)
	require.NoError(t, err)
	assert.Equal(t, storage.KindRemote, id.Kind)

	fresh := tree.NewStore()
	assert.True(t, orch.LoadFromCloud(context.Background(), sess, fresh, id))
	assert.Equal(t, 1, fresh.OrnamentCount())
}

func TestSaveToCloud_CollaboratorPanicIsContained(t *testing.T) {
	localBackend := testLocalBackend(t)
	orch, err := NewOrchestrator(panickyBackend{}, localBackend, nil)
	require.NoError(t, err)

	user := quota.NewUser("u1", "Alice", quota.TierFree)
	sess := NewSession(user)
	store := decoratedStore(t, user)

	// Must not panic; the panic converts to a fallback save.
	id, err := orch.SaveToCloud(context.Background(), sess, store, nil)
	require.NoError(t, err)
	assert.Equal(t, storage.KindLocal, id.Kind)
}

func TestLoadFromCloud_NoCrossNamespaceFallback(t *testing.T) {
	localBackend := testLocalBackend(t)
	orch, err := NewOrchestrator(failingBackend{}, localBackend, nil)
	require.NoError(t, err)

	user := quota.NewUser("u1", "Alice", quota.TierFree)
	sess := NewSession(user)

	t.Run("remote failure is a failure, not a local retry", func(t *testing.T) {
		store := decoratedStore(t, user)
		id := storage.Identifier{Kind: storage.KindRemote, Value: "tree_gone"}
		assert.False(t, orch.LoadFromCloud(context.Background(), sess, store, id))
		// The live store is untouched by the failed load.
		assert.Equal(t, 1, store.OrnamentCount())
	})

	t.Run("local identifier is refused by the cloud path", func(t *testing.T) {
		store := tree.NewStore()
		id := storage.Identifier{Kind: storage.KindLocal, Value: "local_x"}
		assert.False(t, orch.LoadFromCloud(context.Background(), sess, store, id))
	})
}

func TestLoadFromStorage_UnknownID(t *testing.T) {
	localBackend := testLocalBackend(t)
	orch, err := NewOrchestrator(nil, localBackend, nil)
	require.NoError(t, err)

	user := quota.NewUser("u1", "Alice", quota.TierFree)
	sess := NewSession(user)
	store := decoratedStore(t, user)

	id := storage.Identifier{Kind: storage.KindLocal, Value: "local_missing"}
	assert.False(t, orch.LoadFromStorage(context.Background(), sess, store, id))
	assert.Equal(t, 1, store.OrnamentCount(), "failed load must leave the store unchanged")
}

// TestBasicCycle exercises the full flow: configure, decorate, export,
// encode, decode, import into a fresh store.
func TestBasicCycle(t *testing.T) {
	user := quota.NewUser("u1", "Alice", quota.TierFree)
	store := tree.NewStore()

	cfg := tree.TreeConfig{Seed: 1, Height: 6, Radius: 2.5, Tiers: 7, Color: "#1a472a", SnowAmount: 0.3}
	store.UpdateTreeConfig(tree.TreeConfigUpdate{
		Seed: &cfg.Seed, Height: &cfg.Height, Radius: &cfg.Radius,
		Tiers: &cfg.Tiers, Color: &cfg.Color, SnowAmount: &cfg.SnowAmount,
	})

	_, err := store.AddOrnament(user, tree.OrnamentDraft{
		Type:     tree.OrnamentBall,
		Color:    "#ff0000",
		Position: tree.Vector3{Y: 1},
		Scale:    1,
	})
	require.NoError(t, err)

	env := export.ExportTree(store.Ornaments(), store.Topper(), store.Config(), nil)
	code, err := sharecode.GenerateShareCode(env)
	require.NoError(t, err)

	decoded := sharecode.ParseShareCode(code)
	require.NotNil(t, decoded)

	localBackend := testLocalBackend(t)
	orch, err := NewOrchestrator(nil, localBackend, nil)
	require.NoError(t, err)

	fresh := tree.NewStore()
	sess := NewSession(quota.NewUser("u2", "Bob", quota.TierFree))
	require.True(t, orch.ImportEnvelope(sess, fresh, decoded))

	require.Equal(t, 1, fresh.OrnamentCount())
	got := fresh.Ornaments()[0]
	assert.Equal(t, tree.OrnamentBall, got.Type)
	assert.Equal(t, "#ff0000", got.Color)
	assert.Equal(t, cfg, fresh.Config())
}

func TestShareURL(t *testing.T) {
	localBackend := testLocalBackend(t)
	orch, err := NewOrchestrator(nil, localBackend, nil)
	require.NoError(t, err)

	user := quota.NewUser("u1", "Alice", quota.TierFree)
	store := decoratedStore(t, user)

	t.Run("cloud-backed session shares the remote id", func(t *testing.T) {
		sess := NewSession(user)
		sess.CloudID = &storage.Identifier{Kind: storage.KindRemote, Value: "tree_abc"}
		u, err := orch.ShareURL("https://trees.example.com", sess, store)
		require.NoError(t, err)
		assert.Equal(t, "https://trees.example.com?id=tree_abc", u)
	})

	t.Run("trailing slash on the origin is normalized in both forms", func(t *testing.T) {
		sess := NewSession(user)
		sess.CloudID = &storage.Identifier{Kind: storage.KindRemote, Value: "tree_abc"}
		cloudURL, err := orch.ShareURL("https://trees.example.com/", sess, store)
		require.NoError(t, err)
		assert.Equal(t, "https://trees.example.com?id=tree_abc", cloudURL)

		sess = NewSession(user)
		codeURL, err := orch.ShareURL("https://trees.example.com/", sess, store)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(codeURL, "https://trees.example.com?id="))
	})

	t.Run("local-only session embeds a share code", func(t *testing.T) {
		sess := NewSession(user)
		sess.CloudID = &storage.Identifier{Kind: storage.KindLocal, Value: "local_abc"}
		u, err := orch.ShareURL("https://trees.example.com", sess, store)
		require.NoError(t, err)
		assert.Contains(t, u, "?id="+sharecode.Prefix,
			"local identifiers mean nothing off-device; the URL must carry a code")
	})

	t.Run("unsaved session embeds a share code", func(t *testing.T) {
		sess := NewSession(user)
		u, err := orch.ShareURL("https://trees.example.com", sess, store)
		require.NoError(t, err)
		assert.Contains(t, u, "?id="+sharecode.Prefix)
	})
}

func TestImportEnvelope_RejectsInvalid(t *testing.T) {
	localBackend := testLocalBackend(t)
	orch, err := NewOrchestrator(nil, localBackend, nil)
	require.NoError(t, err)

	user := quota.NewUser("u1", "Alice", quota.TierFree)
	sess := NewSession(user)
	store := decoratedStore(t, user)

	bad := &export.ExportEnvelope{Version: 1} // no tree config
	assert.False(t, orch.ImportEnvelope(sess, store, bad))
	assert.Equal(t, 1, store.OrnamentCount(), "rejected import must leave the store unchanged")
}

func TestNewOrchestrator_Validation(t *testing.T) {
	_, err := NewOrchestrator(nil, nil, nil)
	assert.Error(t, err, "a missing local backend breaks the fallback guarantee")
}
