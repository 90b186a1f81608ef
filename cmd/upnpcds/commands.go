package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mantonx/upnpcds/internal/catalog"
	"github.com/mantonx/upnpcds/internal/config"
	"github.com/mantonx/upnpcds/internal/server"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string
	treeDepth  int

	rootCmd = &cobra.Command{
		Use:   "upnpcds",
		Short: "A UPnP/DLNA ContentDirectory server for local media",
		Long: `upnpcds builds an in-memory catalog from configured music and
directory repositories and serves it over the UPnP ContentDirectory protocol.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == versionCmd.Name() {
				return nil
			}
			return loadConfig()
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Scan the configured repositories and serve the ContentDirectory",
		RunE:  runServe,
	}

	treeCmd = &cobra.Command{
		Use:   "tree [path]",
		Short: "Scan the configured repositories and print the catalog tree",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTree,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "upnpcds", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML or JSON config file (default: $UPNPCDS_CONFIG_PATH or ./upnpcds.yaml)")
	treeCmd.Flags().IntVarP(&treeDepth, "depth", "d", 0, "maximum depth to print, 0 for unlimited")

	rootCmd.AddCommand(serveCmd, treeCmd, versionCmd)
}

// loadConfig resolves the config path and loads it into the global manager.
func loadConfig() error {
	path := configPath
	if path == "" {
		path = os.Getenv("UPNPCDS_CONFIG_PATH")
	}
	if path == "" {
		if _, err := os.Stat("./upnpcds.yaml"); err == nil {
			path = "./upnpcds.yaml"
		}
	}

	if err := config.Load(path); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()
	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := server.New(cfg.Server, a.svc, a.logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func runTree(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, config.Get(), nil)
	if err != nil {
		return err
	}
	defer a.Close()

	start := a.svc.Store().Root()
	if len(args) == 1 {
		start, err = a.svc.Store().Lookup(args[0])
		if err != nil {
			return err
		}
	}

	printTree(cmd.OutOrStdout(), a.svc.Store(), start, treeDepth)
	return nil
}

// printTree writes one line per node below start, indented by depth.
func printTree(w io.Writer, store *catalog.Store, start *catalog.Item, maxDepth int) {
	store.Walk(start, func(item *catalog.Item, depth int) bool {
		if maxDepth > 0 && depth > maxDepth {
			return false
		}
		name := item.Name()
		if name == "" {
			name = "/"
		}
		line := strings.Repeat("  ", depth) + name
		if title := item.Title(); item.IsContainer() && title != name && depth > 0 {
			line += fmt.Sprintf(" %q", title)
		}
		fmt.Fprintf(w, "%s [%s id=%d]\n", line, item.Class(), item.ID())
		return true
	})
}
