// Copyright (C) 2025 the treedeck authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/pkg/logging"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/export"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/persist"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/quota"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/server"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/sharecode"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/storage"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/storage/local"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/storage/remote"
	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/tree"
)

var (
	rootCmd = &cobra.Command{
		Use:   "treedeck",
		Short: "A CLI for saving, loading, and sharing decorated trees",
		Long: `Treedeck manages decorated-tree envelopes: it runs the cloud tree
store, saves envelopes to it (falling back to local storage when the
cloud is unreachable), and generates portable share codes.`,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the cloud tree store service",
		RunE:  runServeCommand,
	}
	newCmd = &cobra.Command{
		Use:   "new",
		Short: "Write a starter tree envelope with the default configuration",
		RunE:  runNewCommand,
	}
	saveCmd = &cobra.Command{
		Use:   "save [envelope.json]",
		Short: "Save an envelope to the cloud store, with local fallback",
		Args:  cobra.ExactArgs(1),
		RunE:  runSaveCommand,
	}
	loadCmd = &cobra.Command{
		Use:   "load [id, share code, or share URL]",
		Short: "Load a saved tree and write its envelope to a file",
		Args:  cobra.ExactArgs(1),
		RunE:  runLoadCommand,
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List locally saved trees",
		RunE:  runListCommand,
	}
	shareCmd = &cobra.Command{
		Use:   "share [envelope.json]",
		Short: "Generate a share URL for an envelope and copy it to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE:  runShareCommand,
	}

	configPath string
	outputPath string
	noCopy     bool

	cfg    Config
	logger *logging.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.treedeck/config.yaml)")
	newCmd.Flags().StringVarP(&outputPath, "output", "o", "tree.json", "output file")
	loadCmd.Flags().StringVarP(&outputPath, "output", "o", "tree.json", "output file")
	shareCmd.Flags().BoolVar(&noCopy, "no-copy", false, "print the URL without copying it to the clipboard")

	rootCmd.AddCommand(serveCmd, newCmd, saveCmd, loadCmd, listCmd, shareCmd)
}

// Execute loads configuration, sets up logging, and runs the CLI.
func Execute() error {
	var err error
	cfg, err = LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger = logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		LogDir:  cfg.LogDir,
		Service: "treedeck",
	})
	defer logger.Close()
	logger.SetAsDefault()

	return rootCmd.Execute()
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	db, err := local.Open(local.Config{
		Path:       expandPath(cfg.DataDir),
		SyncWrites: true,
		Logger:     logger.Slog(),
	})
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := local.NewServerStore(db)
	if err != nil {
		return err
	}

	logger.Info("cloud tree store listening", "addr", cfg.ListenAddr)
	return server.New(store).Run(cfg.ListenAddr)
}

func runNewCommand(cmd *cobra.Command, args []string) error {
	env := export.ExportTree(nil, nil, tree.DefaultTreeConfig(), nil)
	if err := writeEnvelopeFile(outputPath, env); err != nil {
		return err
	}
	fmt.Printf("Wrote starter envelope to %s\n", outputPath)
	return nil
}

func runSaveCommand(cmd *cobra.Command, args []string) error {
	env, err := readEnvelopeFile(args[0])
	if err != nil {
		return err
	}

	sess, orch, cleanup, err := buildOrchestrator()
	if err != nil {
		return err
	}
	defer cleanup()

	store := tree.NewStore()
	if !orch.ImportEnvelope(sess, store, env) {
		return fmt.Errorf("envelope %s failed validation", args[0])
	}

	id, err := orch.SaveToCloud(context.Background(), sess, store, &env.Metadata)
	if err != nil {
		return err
	}
	switch id.Kind {
	case storage.KindRemote:
		fmt.Printf("Saved to cloud: %s\n", id.Value)
	default:
		fmt.Printf("Cloud unreachable; saved locally: %s\n", id.Value)
	}
	return nil
}

func runLoadCommand(cmd *cobra.Command, args []string) error {
	ref := extractIDParam(args[0])

	sess, orch, cleanup, err := buildOrchestrator()
	if err != nil {
		return err
	}
	defer cleanup()

	store := tree.NewStore()

	// Dispatch order: the share-code prefix is checked first (decoding is
	// local and cheap); everything else is a backend identifier.
	if sharecode.IsShareCode(ref) {
		env := sharecode.ParseShareCode(ref)
		if env == nil {
			return fmt.Errorf("share code did not decode")
		}
		if !orch.ImportEnvelope(sess, store, env) {
			return fmt.Errorf("share code envelope failed validation")
		}
	} else {
		id, err := storage.ParseIdentifier(ref)
		if err != nil {
			return fmt.Errorf("not a share code or known identifier: %w", err)
		}
		if !orch.LoadIdentifier(context.Background(), sess, store, id) {
			return fmt.Errorf("no saved tree for %s", ref)
		}
	}

	env := export.ExportTree(store.Ornaments(), store.Topper(), store.Config(), nil)
	if err := writeEnvelopeFile(outputPath, env); err != nil {
		return err
	}
	fmt.Printf("Loaded tree with %d ornament(s) into %s\n", len(env.Ornaments), outputPath)
	return nil
}

func runListCommand(cmd *cobra.Command, args []string) error {
	db, localStore, err := openLocalStore()
	if err != nil {
		return err
	}
	defer db.Close()

	trees, err := localStore.List(context.Background())
	if err != nil {
		return err
	}
	if len(trees) == 0 {
		fmt.Println("No locally saved trees.")
		return nil
	}
	for _, t := range trees {
		name := t.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%s  %-20s  %d ornament(s)  %s\n",
			t.ID.Value, name, t.OrnamentCount, t.SavedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runShareCommand(cmd *cobra.Command, args []string) error {
	env, err := readEnvelopeFile(args[0])
	if err != nil {
		return err
	}

	shareURL, err := sharecode.GenerateShareURL(cfg.Origin, env)
	if err != nil {
		return err
	}
	fmt.Println(shareURL)

	if !noCopy {
		if err := clipboard.WriteAll(shareURL); err != nil {
			logger.Warn("could not copy share URL to clipboard", "error", err)
		} else {
			fmt.Println("Copied to clipboard.")
		}
	}
	return nil
}

// buildOrchestrator assembles the session, backends, and orchestrator
// from configuration. The returned cleanup closes the local database.
func buildOrchestrator() (*persist.Session, *persist.Orchestrator, func(), error) {
	db, localStore, err := openLocalStore()
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() { db.Close() }

	var remoteBackend storage.Backend
	if cfg.RemoteURL != "" {
		client, err := remote.NewClient(cfg.RemoteURL, nil)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		remoteBackend = client
	}

	orch, err := persist.NewOrchestrator(remoteBackend, localStore, logger.Slog())
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	user := quota.NewUser(uuid.NewString(), cfg.UserName, quota.Tier(cfg.UserTier))
	return persist.NewSession(user), orch, cleanup, nil
}

func openLocalStore() (interface{ Close() error }, *local.Store, error) {
	db, err := local.Open(local.Config{
		Path:       expandPath(cfg.DataDir),
		SyncWrites: true,
		Logger:     logger.Slog(),
	})
	if err != nil {
		return nil, nil, err
	}
	store, err := local.NewStore(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, store, nil
}

func readEnvelopeFile(path string) (*export.ExportEnvelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read envelope %s: %w", path, err)
	}
	env, err := export.UnmarshalEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("envelope %s: %w", path, err)
	}
	return env, nil
}

func writeEnvelopeFile(path string, env *export.ExportEnvelope) error {
	data, err := export.MarshalEnvelope(env)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("write envelope %s: %w", path, err)
	}
	return nil
}

// extractIDParam accepts a full share URL, a raw share code, or a bare
// identifier and returns the id value.
func extractIDParam(ref string) string {
	if strings.Contains(ref, "://") {
		if u, err := url.Parse(ref); err == nil {
			if id := u.Query().Get("id"); id != "" {
				return id
			}
		}
	}
	return ref
}
