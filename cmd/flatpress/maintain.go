package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eringen/flatpress"
)

// loadConfig reads flatpress.yaml from the working directory. The
// maintenance commands run from a project root, same as the server.
func loadConfig() (flatpress.SiteConfig, error) {
	cfg, err := flatpress.LoadSiteConfig("flatpress.yaml")
	if err != nil {
		return flatpress.SiteConfig{}, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "rebuild index.json from the post documents",
		Long: `Rescan every post document and rewrite content/index.json.

Useful after editing post files by hand or syncing content from another
machine. Corrupt documents are skipped and logged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := flatpress.NewStore(cfg.ContentDir, cfg.Author)
			if err != nil {
				return err
			}
			if err := store.RebuildIndex(); err != nil {
				return err
			}
			counts := store.CountByStatus()
			total := 0
			for _, n := range counts {
				total += n
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Index rebuilt: %d posts (%d published, %d draft)\n",
				total, counts[flatpress.StatusPublished], counts[flatpress.StatusDraft])
			return nil
		},
	}
}

func newBackupCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "create a backup archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			backups := flatpress.NewBackups(".")
			info, err := backups.Create(kind)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %d files, %d bytes\n", info.FileCount, info.SizeBytes)
			return nil
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "manual", "label recorded in the backup metadata")
	return cmd
}

func newBackupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "list backup archives, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			backups := flatpress.NewBackups(".")
			files, err := backups.List()
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No backups found.")
				return nil
			}
			for _, f := range files {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n",
					f.ModTime.Format("2006-01-02 15:04"), f.HumanSize(), f.Name)
			}
			return nil
		},
	}
}
