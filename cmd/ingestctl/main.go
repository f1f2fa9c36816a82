// Ingestctl is a command-line client for the ingestor API.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bturcanu/ingestbridge/pkg/config"
	"github.com/bturcanu/ingestbridge/pkg/sdk/client"
	"github.com/bturcanu/ingestbridge/pkg/tools"
)

func main() {
	root := newRootCmd()
	root.SetOut(os.Stdout)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

type globalOpts struct {
	url    string
	apiKey string
}

func (o *globalOpts) client() *client.Client {
	return client.New(o.url, o.apiKey)
}

func newRootCmd() *cobra.Command {
	opts := &globalOpts{}
	root := &cobra.Command{
		Use:          "ingestctl",
		Short:        "Drive connector syncs and remote tools on an ingestor",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.url, "url", config.EnvOr("INGESTOR_URL", "http://localhost:8080"), "ingestor base URL")
	root.PersistentFlags().StringVar(&opts.apiKey, "api-key", os.Getenv("INGESTOR_API_KEY"), "org API key")

	root.AddCommand(
		newSyncCmd(opts),
		newConfigCmd(opts),
		newContentCmd(opts),
		newToolsCmd(opts),
	)
	return root
}

func newSyncCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <connector>",
		Short: "Run one sync pass of a connector for your org",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := opts.client().Sync(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			cmd.Printf("Synced %d groups, %d records (%d skipped).\n", report.Groups, report.Records, report.Skipped)
			for _, f := range report.Failures {
				cmd.Printf("  failed %s: %s\n", f.GroupID, f.Error)
			}
			return nil
		},
	}
}

func newConfigCmd(opts *globalOpts) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage your org's connector settings",
	}

	var file string
	set := &cobra.Command{
		Use:   "set <connector>",
		Short: "Store connector settings from a JSON object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(file)
			if err != nil {
				return err
			}
			var settings map[string]any
			if err := json.Unmarshal(raw, &settings); err != nil {
				return fmt.Errorf("parse settings: %w", err)
			}
			if err := opts.client().SetConnectorConfig(cmd.Context(), args[0], settings); err != nil {
				return err
			}
			cmd.Printf("Stored %s settings.\n", args[0])
			return nil
		},
	}
	set.Flags().StringVarP(&file, "file", "f", "-", "settings file, - for stdin")

	configCmd.AddCommand(set)
	return configCmd
}

func newContentCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "content <record-id>",
		Short: "Print the live content of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client().RecordContent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if c.Unavailable != "" {
				cmd.PrintErrf("warning: %s\n", c.Unavailable)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), c.Body)
			return err
		},
	}
}

func newToolsCmd(opts *globalOpts) *cobra.Command {
	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "Manage remote tools",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := opts.client().ListTools(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range list {
				cmd.Printf("%s\t%s\n", t.Key(), t.Description)
			}
			return nil
		},
	}

	var userID, file string
	register := &cobra.Command{
		Use:   "register",
		Short: "Register tool descriptors from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			descs, err := readDescriptors(file)
			if err != nil {
				return err
			}
			resp, err := opts.client().RegisterTools(cmd.Context(), userID, descs)
			if err != nil {
				return err
			}
			cmd.Printf("Registered %d of %d tools.\n", resp.Registered, len(descs))
			return nil
		},
	}
	register.Flags().StringVar(&userID, "user", "", "user the tools execute as")
	register.Flags().StringVarP(&file, "file", "f", "-", "descriptor file, - for stdin")
	_ = register.MarkFlagRequired("user")

	unregister := &cobra.Command{
		Use:   "unregister <app>...",
		Short: "Remove every tool of the given apps",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := opts.client().UnregisterApps(cmd.Context(), args)
			if err != nil {
				return err
			}
			cmd.Printf("Removed %d tools.\n", n)
			return nil
		},
	}

	var params string
	exec := &cobra.Command{
		Use:   "exec <app.action>",
		Short: "Execute a registered tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(params)) {
				return fmt.Errorf("--params is not valid JSON")
			}
			res, err := opts.client().ExecuteTool(cmd.Context(), args[0], json.RawMessage(params))
			if err != nil {
				return err
			}
			if res.Failed() {
				return res.Err
			}
			cmd.Println(string(res.Value))
			return nil
		},
	}
	exec.Flags().StringVar(&params, "params", "{}", "tool parameters as a JSON object")

	toolsCmd.AddCommand(list, register, unregister, exec)
	return toolsCmd
}

// readDescriptors accepts either a bare array of descriptors or an object
// with a "tools" array.
func readDescriptors(path string) ([]tools.Descriptor, error) {
	raw, err := readInput(path)
	if err != nil {
		return nil, err
	}

	var descs []tools.Descriptor
	if err := json.Unmarshal(raw, &descs); err == nil {
		return descs, nil
	}
	var wrapped struct {
		Tools []tools.Descriptor `json:"tools"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("parse descriptors: %w", err)
	}
	return wrapped.Tools, nil
}

func readInput(path string) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}
