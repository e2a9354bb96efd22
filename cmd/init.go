package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcus/fieldsync/internal/output"
	"github.com/marcus/fieldsync/internal/store"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize the local submission queue",
	Long:    `Creates the local .fieldsync directory and SQLite queue database.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir := getBaseDir()

		// Check if already initialized
		if _, err := os.Stat(filepath.Join(baseDir, ".fieldsync")); err == nil {
			output.Warning(".fieldsync/ already exists")
			return nil
		}

		st, err := store.Initialize(baseDir)
		if err != nil {
			output.Error("failed to initialize queue: %v", err)
			return err
		}
		defer st.Close()

		fmt.Println("INITIALIZED .fieldsync/")

		gitignorePath := filepath.Join(baseDir, ".gitignore")
		if _, err := os.Stat(filepath.Join(baseDir, ".git")); err == nil {
			addToGitignore(gitignorePath)
		}

		return nil
	},
}

func addToGitignore(path string) {
	// Read existing content
	content, _ := os.ReadFile(path)
	contentStr := string(content)

	// Check if already present
	if strings.Contains(contentStr, ".fieldsync/") {
		return
	}

	// Append to file
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	// Add newline if file doesn't end with one
	if len(contentStr) > 0 && !strings.HasSuffix(contentStr, "\n") {
		f.WriteString("\n")
	}

	f.WriteString(".fieldsync/\n")
	fmt.Println("Added .fieldsync/ to .gitignore")
}

func init() {
	rootCmd.AddCommand(initCmd)
}
