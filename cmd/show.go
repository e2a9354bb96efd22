package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/marcus/fieldsync/internal/models"
	"github.com/marcus/fieldsync/internal/output"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:     "show <id>",
	Short:   "Show full details for a queued report",
	GroupID: "queue",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)

		rec, err := e.Get(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			return output.JSON(rec)
		}

		rendered, err := output.RenderMarkdown(recordMarkdown(rec))
		if err != nil {
			// Fall back to the raw markdown when rendering fails
			fmt.Println(recordMarkdown(rec))
			return nil
		}
		fmt.Print(rendered)
		return nil
	},
}

// recordMarkdown builds the markdown detail view for one record.
func recordMarkdown(rec *models.SubmissionRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", rec.ID)
	fmt.Fprintf(&b, "**Status:** %s  \n", rec.Status)
	fmt.Fprintf(&b, "**Created:** %s (%s)  \n",
		rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		output.FormatTimeAgo(rec.CreatedAt))
	if rec.CreatedOffline {
		b.WriteString("**Origin:** created while offline  \n")
	}
	if rec.RetryCount > 0 {
		fmt.Fprintf(&b, "**Retries:** %d  \n", rec.RetryCount)
	}
	if rec.LastRetryAt != nil {
		fmt.Fprintf(&b, "**Last attempt:** %s  \n", output.FormatTimeAgo(*rec.LastRetryAt))
	}
	if rec.LastError != "" {
		fmt.Fprintf(&b, "**Last error:** %s  \n", rec.LastError)
	}

	b.WriteString("\n## Payload\n\n```json\n")
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, rec.Payload, "", "  "); err == nil {
		b.Write(pretty.Bytes())
	} else {
		b.Write(rec.Payload)
	}
	b.WriteString("\n```\n")

	return b.String()
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().Bool("json", false, "Output as JSON")
}
