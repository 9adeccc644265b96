package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds minimal global/persistent flags for CLI commands
type GlobalFlags struct {
	ConfigPath string
}

// NodeFlags identifies one node plus the API connection.
type NodeFlags struct {
	Node       uint64
	APIUrl     string
	APITimeout time.Duration
}

// ConfigSetFlags holds flags for the config set command
type ConfigSetFlags struct {
	NodeFlags
	Mode             string
	QualitySensitive string // "", "true" or "false"; unset fields merge
}

// TemplateFlags holds flags for template capture/apply
type TemplateFlags struct {
	NodeFlags
	File string
}

// ServeFlags holds flags for the serve command
type ServeFlags struct {
	ConfigPath string
}

// buildRoot creates the root command and wires all subcommands
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	root := createRootCommand(globalFlags)

	cli := command{}
	root.AddCommand(
		createServeCommand(globalFlags),
		createNodesCommand(cli),
		createConfigCommand(cli),
		createTemplateCommand(cli),
		createPassCommand(cli),
		createSweepCommand(cli),
	)
	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "sigsift",
		Short: "Dual-channel signal filter daemon",
		Long: `Sigsift compares two labeled signal readings per node and publishes
filtered per-channel views, locally or via a remote daemon connection.

Examples:
  sigsift serve --config=config.toml
  sigsift nodes
  sigsift config set --node=7 --mode=inter
  sigsift template capture --node=7 > tmpl.json`,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

func addAPIFlags(cmd *cobra.Command, f *NodeFlags) {
	cmd.Flags().StringVar(&f.APIUrl, "api-url", "", "daemon URL (e.g. http://host:8080/api)")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 10*time.Second, "request timeout")
}

func addNodeFlag(cmd *cobra.Command, f *NodeFlags) {
	cmd.Flags().Uint64Var(&f.Node, "node", 0, "node id (required)")
	if err := cmd.MarkFlagRequired("node"); err != nil {
		panic(err)
	}
}

// createNodesCommand creates the nodes subcommand
func createNodesCommand(cli command) *cobra.Command {
	flags := &NodeFlags{}
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List live nodes and their configs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Nodes(*flags)
		},
	}
	addAPIFlags(cmd, flags)
	return cmd
}

// createConfigCommand creates the config subcommand with get/set
func createConfigCommand(cli command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change a node's filter config",
	}

	getFlags := &NodeFlags{}
	get := &cobra.Command{
		Use:   "get",
		Short: "Print a node's effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.GetConfig(*getFlags)
		},
	}
	addNodeFlag(get, getFlags)
	addAPIFlags(get, getFlags)

	setFlags := &ConfigSetFlags{}
	set := &cobra.Command{
		Use:   "set",
		Short: "Merge-update a node's config",
		Long: `Merge the given fields into a node's config. Unset flags keep
their current values.

Examples:
  sigsift config set --node=7 --mode=inter
  sigsift config set --node=7 --quality-sensitive=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.SetConfig(*setFlags)
		},
	}
	addNodeFlag(set, &setFlags.NodeFlags)
	addAPIFlags(set, &setFlags.NodeFlags)
	set.Flags().StringVar(&setFlags.Mode, "mode", "", `filter mode: "diff" or "inter"`)
	set.Flags().StringVar(&setFlags.QualitySensitive, "quality-sensitive", "", `"true" or "false"`)

	cmd.AddCommand(get, set)
	return cmd
}

// createTemplateCommand creates the template subcommand with capture/apply
func createTemplateCommand(cli command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Capture or apply node config templates",
	}

	capFlags := &TemplateFlags{}
	capture := &cobra.Command{
		Use:   "capture",
		Short: "Serialize a node's config into a template payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.CaptureTemplate(*capFlags)
		},
	}
	addNodeFlag(capture, &capFlags.NodeFlags)
	addAPIFlags(capture, &capFlags.NodeFlags)
	capture.Flags().StringVar(&capFlags.File, "out", "", "write payload to file instead of stdout")

	applyFlags := &TemplateFlags{}
	apply := &cobra.Command{
		Use:   "apply",
		Short: "Restore a template payload onto a node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ApplyTemplate(*applyFlags)
		},
	}
	addNodeFlag(apply, &applyFlags.NodeFlags)
	addAPIFlags(apply, &applyFlags.NodeFlags)
	apply.Flags().StringVar(&applyFlags.File, "file", "", "payload file (required)")
	if err := apply.MarkFlagRequired("file"); err != nil {
		panic(err)
	}

	cmd.AddCommand(capture, apply)
	return cmd
}

// createPassCommand creates the pass subcommand
func createPassCommand(cli command) *cobra.Command {
	flags := &NodeFlags{}
	cmd := &cobra.Command{
		Use:   "pass",
		Short: "Run one compute-and-push pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Pass(*flags)
		},
	}
	addAPIFlags(cmd, flags)
	return cmd
}

// createSweepCommand creates the sweep subcommand
func createSweepCommand(cli command) *cobra.Command {
	flags := &NodeFlags{}
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Destroy nodes whose circuit is gone",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Sweep(*flags)
		},
	}
	addAPIFlags(cmd, flags)
	return cmd
}
