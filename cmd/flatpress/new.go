package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/eringen/flatpress/scaffold"
)

func newNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <project-name>",
		Short: "create a new flatpress project",
		Long: `Create a new flatpress project directory with a runnable main.go,
a starter config, and a hello-world post.

The project name may be a bare name or a full module path:

  flatpress new myblog
  flatpress new github.com/user/myblog`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNew(cmd, args[0])
		},
	}
}

func runNew(cmd *cobra.Command, name string) error {
	dirName := name
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		dirName = name[idx+1:]
	}

	if _, err := os.Stat(dirName); err == nil {
		return fmt.Errorf("directory %q already exists", dirName)
	}

	data := scaffold.Data{
		ProjectName: dirName,
		ModuleName:  name,
		SiteName:    toTitle(dirName),
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Creating new flatpress project: %s\n\n", dirName)

	for _, f := range scaffold.Files {
		tmpl, err := template.New(filepath.Base(f.Path)).Parse(f.Content)
		if err != nil {
			return fmt.Errorf("parse template %s: %w", f.Path, err)
		}

		outPath := filepath.Join(dirName, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return err
		}
		out, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", outPath, err)
		}
		err = tmpl.Execute(out, data)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  created %s\n", outPath)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nResolving Go dependencies...")
	tidy := exec.Command("go", "mod", "tidy")
	tidy.Dir = dirName
	tidy.Stdout = cmd.OutOrStdout()
	tidy.Stderr = cmd.ErrOrStderr()
	if err := tidy.Run(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nWarning: go mod tidy failed: %v\n", err)
		fmt.Fprintf(cmd.ErrOrStderr(), "Run 'cd %s && go mod tidy' manually after fixing.\n", dirName)
	}

	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), "Done! Next steps:")
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintf(cmd.OutOrStdout(), "  cd %s\n", dirName)
	fmt.Fprintln(cmd.OutOrStdout(), "  cp .env.example .env")
	fmt.Fprintln(cmd.OutOrStdout(), "  go run .")
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), "Set ADMIN_PASSWORD and SESSION_SECRET in .env before deploying.")
	return nil
}

// toTitle converts a hyphenated or lowercase name to a title-case string.
// e.g. "my-blog" -> "My Blog", "myblog" -> "Myblog"
func toTitle(s string) string {
	parts := strings.Split(s, "-")
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
