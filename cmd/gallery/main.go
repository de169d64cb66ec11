package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"gallery-go/internal/app"
	"gallery-go/internal/config"
	"gallery-go/internal/encryption"
	"gallery-go/internal/model"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a GalleryApp, printing any startup
// warnings. The caller must defer app.Close().
func newApp(ctx context.Context, operation string) (*app.GalleryApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewGalleryApp(ctx, cfg, operation, readPassphrase)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	for _, w := range a.Warnings() {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	return a, nil
}

// readPassphrase takes the passphrase from GALLERY_PASSPHRASE, or prompts
// for it on the terminal.
func readPassphrase() (string, error) {
	if p := os.Getenv("GALLERY_PASSPHRASE"); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal to prompt for a passphrase, set GALLERY_PASSPHRASE")
	}
	fmt.Fprint(os.Stderr, "Passphrase: ")
	p, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// closeApp closes c and joins any error into *err, so a failed metrics
// write or index close still fails the command.
func closeApp(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil {
		*err = errors.Join(*err, fmt.Errorf("closing gallery: %w", cerr))
	}
}

var rootCmd = &cobra.Command{
	Use:          "gallery",
	Short:        "Local photo gallery",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Vault:      %s (%s)\n", cfg.Vault.Name, cfg.Vault.Type)
		fmt.Printf("Index:      %s (key %s)\n", cfg.Index.Type, cfg.Index.Key)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage index encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate an age key pair protected by a passphrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		passphrase, err := readPassphrase()
		if err != nil {
			return err
		}
		if passphrase == "" {
			return errors.New("passphrase must not be empty")
		}

		k := encryption.NewAgeKeyring(cfg.Encryption)
		if err := k.Setup(passphrase); err != nil {
			return err
		}
		fmt.Printf("Keys written to %s and %s\n", cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		fmt.Println(`Set type = "age" under [encryption] to seal the index.`)
		return nil
	},
}

// capture command
var captureCmd = &cobra.Command{
	Use:   "capture PATH",
	Short: "Add a photo, or every photo in a directory, to the gallery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		recursive, _ := cmd.Flags().GetBool("recursive")
		move, _ := cmd.Flags().GetBool("move")
		ignore, _ := cmd.Flags().GetStringSlice("ignore")

		a, err := newApp(cmd.Context(), "capture")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		recs, err := a.Import(cmd.Context(), args[0], app.ImportOptions{Recursive: recursive, Ignore: ignore, Move: move})
		for _, r := range recs {
			fmt.Printf("%s  %s\n", r.ID, r.CapturedAt.Local().Format("2006-01-02 15:04:05"))
		}
		if err != nil {
			return fmt.Errorf("capture failed after %d photo(s): %w", len(recs), err)
		}
		fmt.Printf("Captured %d photo(s)\n", len(recs))
		return nil
	},
}

// listEntry is the serialized form of a record in list output.
type listEntry struct {
	ID         string    `json:"id" yaml:"id"`
	CapturedAt time.Time `json:"capturedAt" yaml:"capturedAt"`
}

func writeList(w io.Writer, records []model.MediaRecord, format string) error {
	entries := make([]listEntry, len(records))
	for i, r := range records {
		entries[i] = listEntry{ID: r.ID, CapturedAt: r.CapturedAt}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(entries)
	case "text", "":
		if len(entries) == 0 {
			_, err := fmt.Fprintln(w, "No photos.")
			return err
		}
		for _, e := range entries {
			if _, err := fmt.Fprintf(w, "%s  %s\n", e.ID, e.CapturedAt.Local().Format("2006-01-02 15:04:05")); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List photos, oldest first",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		format, _ := cmd.Flags().GetString("output")

		a, err := newApp(cmd.Context(), "list")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		return writeList(os.Stdout, a.List(), format)
	},
}

// detail command
var detailCmd = &cobra.Command{
	Use:   "detail ID",
	Short: "Show one photo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd.Context(), "detail")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		d, err := a.Detail(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("ID:       %s\n", d.Record.ID)
		fmt.Printf("Captured: %s\n", d.Record.CapturedAt.Local().Format(time.RFC3339))
		fmt.Printf("File:     %s\n", d.BlobName)
		fmt.Printf("Size:     %d bytes\n", d.SizeBytes)
		fmt.Printf("Modified: %s\n", d.ModifiedAt.Local().Format(time.RFC3339))
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export ID",
	Short: "Copy a photo out of the gallery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		dest, _ := cmd.Flags().GetString("to")

		a, err := newApp(cmd.Context(), "export")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		if err := a.Export(cmd.Context(), args[0], dest, os.Stdout); err != nil {
			return err
		}
		if dest != "-" {
			fmt.Printf("Exported %s to %s\n", args[0], dest)
		}
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete ID...",
	Short: "Remove photos from the gallery",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd.Context(), "delete")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		for _, id := range args {
			if err := a.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", id)
		}
		return nil
	},
}

// reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair differences between the index and stored photos",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd.Context(), "reconcile")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		report, err := a.Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		if !report.Changed() && len(report.OrphansFailed) == 0 {
			fmt.Println("Gallery is consistent.")
			return nil
		}
		for _, r := range report.Dropped {
			fmt.Printf("dropped  %s (file missing)\n", r.ID)
		}
		for _, id := range report.OrphansRemoved {
			fmt.Printf("removed  %s (not in index)\n", id)
		}
		if len(report.OrphansFailed) > 0 {
			fmt.Printf("could not remove: %s\n", strings.Join(report.OrphansFailed, ", "))
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	captureCmd.Flags().Bool("move", false, "Delete each source file once it is in the gallery")
	captureCmd.Flags().StringSlice("ignore", nil, "Extra ignore patterns, on top of .galleryignore")
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringP("output", "o", "text", "Output format: text, json or yaml")
	rootCmd.AddCommand(detailCmd)
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("to", ".", `Destination directory, or "-" for stdout`)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(reconcileCmd)
}
