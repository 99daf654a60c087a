package main

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"querymesh/internal/config"
)

func backupCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a backup of mesh data (databases, catalogues, config)",
		Long: `Creates a compressed .tar.gz archive containing the registry and
records databases, the session history, the sink catalogue, the seed
manifest and the configuration file. The backup is timestamped by
default.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if outputPath == "" {
				backupDir := filepath.Join(cfg.General.DataDir, "backups")
				if err := os.MkdirAll(backupDir, 0o755); err != nil {
					return fmt.Errorf("cannot create backup directory: %w", err)
				}
				ts := time.Now().Format("20060102-150405")
				outputPath = filepath.Join(backupDir, fmt.Sprintf("querymesh-backup-%s.tar.gz", ts))
			}

			files := backupFiles(cfgPath, cfg)
			if len(files) == 0 {
				return fmt.Errorf("nothing to back up under %s", cfg.General.DataDir)
			}

			if err := createTarGz(outputPath, files); err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			fmt.Printf("Backup created: %s\n", outputPath)
			fmt.Printf("Files included: %d\n", len(files))
			for _, f := range files {
				size := int64(0)
				if info, err := os.Stat(f); err == nil {
					size = info.Size()
				}
				fmt.Printf("  - %s (%s)\n", filepath.Base(f), humanSize(size))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default: <dataDir>/backups/querymesh-backup-<timestamp>.tar.gz)")
	return cmd
}

func restoreCmd() *cobra.Command {
	var inputPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "restore [file.tar.gz]",
		Short: "Restore mesh data from a backup archive",
		Long: `Restores databases, catalogues and configuration from a .tar.gz
archive created by 'querymesh backup'. Stop the mesh before restoring.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" && len(args) > 0 {
				inputPath = args[0]
			}
			if inputPath == "" {
				return fmt.Errorf("specify a backup file: querymesh restore <file.tar.gz>")
			}

			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				// Restoring onto a clean machine: fall back to the default
				// layout, where every data file lives under the data dir.
				cfg = config.Defaults()
				cfg.General.DataDir = config.ExpandPath(cfg.General.DataDir)
			}

			if !force {
				if _, err := os.Stat(cfgPath); err == nil {
					fmt.Printf("This will overwrite existing data under %s.\n", cfg.General.DataDir)
					return fmt.Errorf("restore aborted (use --force to proceed)")
				}
			}

			restored, err := extractTarGz(inputPath, cfgPath, cfg)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			fmt.Printf("Restore completed from: %s\n", inputPath)
			fmt.Printf("Files restored: %d\n", len(restored))
			for _, f := range restored {
				fmt.Printf("  - %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "backup file to restore from")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing data without asking")
	return cmd
}

// backupFiles lists the data files a backup should carry. Databases
// bring their WAL and SHM sidecars when present.
func backupFiles(cfgPath string, cfg *config.Config) []string {
	databases := []string{
		cfg.Registry.DBPath,
		cfg.Records.DatabaseFilePath,
		filepath.Join(cfg.General.DataDir, "history.db"),
	}
	var files []string
	for _, db := range databases {
		if db == "" {
			continue
		}
		if _, err := os.Stat(db); err != nil {
			continue
		}
		files = append(files, db)
		for _, suffix := range []string{"-wal", "-shm"} {
			if _, err := os.Stat(db + suffix); err == nil {
				files = append(files, db+suffix)
			}
		}
	}
	for _, extra := range []string{cfg.Sinks.CataloguePath, cfg.Registry.SeedManifest, cfgPath} {
		if extra == "" {
			continue
		}
		if _, err := os.Stat(extra); err == nil {
			files = append(files, extra)
		}
	}
	return files
}

// restoreTarget maps an archived base name back to its live location.
// Archives store base names only, so the mapping keys off the
// configured paths; unknown names land in the data dir.
func restoreTarget(baseName, cfgPath string, cfg *config.Config) string {
	name := strings.TrimSuffix(strings.TrimSuffix(baseName, "-wal"), "-shm")
	suffix := strings.TrimPrefix(baseName, name)

	var target string
	switch name {
	case filepath.Base(cfgPath):
		target = cfgPath
	case "history.db":
		target = filepath.Join(cfg.General.DataDir, "history.db")
	case filepath.Base(cfg.Registry.DBPath):
		target = cfg.Registry.DBPath
	case filepath.Base(cfg.Records.DatabaseFilePath):
		target = cfg.Records.DatabaseFilePath
	case filepath.Base(cfg.Sinks.CataloguePath):
		target = cfg.Sinks.CataloguePath
	case filepath.Base(cfg.Registry.SeedManifest):
		target = cfg.Registry.SeedManifest
	default:
		target = filepath.Join(cfg.General.DataDir, name)
	}
	return target + suffix
}

func createTarGz(outputPath string, files []string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	defer gw.Close()

	tw := tar.NewWriter(gw)
	defer tw.Close()

	for _, file := range files {
		if err := addFileToTar(tw, file); err != nil {
			return fmt.Errorf("adding %s: %w", file, err)
		}
	}
	return nil
}

func addFileToTar(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = filepath.Base(path)

	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

func extractTarGz(archivePath, cfgPath string, cfg *config.Config) ([]string, error) {
	in, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	gr, err := gzip.NewReader(in)
	if err != nil {
		return nil, fmt.Errorf("not a gzip archive: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	var restored []string

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return restored, err
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		// Archives carry base names only; anything that still has a
		// path separator after cleaning is hostile.
		name := filepath.Base(filepath.Clean(header.Name))
		if name == "." || name == ".." || name == string(filepath.Separator) {
			continue
		}

		target := restoreTarget(name, cfgPath, cfg)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return restored, err
		}

		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return restored, err
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return restored, err
		}
		out.Close()
		restored = append(restored, target)
	}
	return restored, nil
}

func humanSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
