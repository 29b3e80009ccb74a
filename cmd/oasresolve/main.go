// Command oasresolve resolves an OpenAPI document into a self-contained
// schema graph and reports what it found: named schemas, operations, and
// every diagnostic raised during resolution.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jacoelho/openapi"
	oaserrors "github.com/jacoelho/openapi/errors"
)

var (
	version = "dev"

	allowedDomains []string
	failFast       bool
	maxRefDepth    int
	workers        int
	fetchTimeout   time.Duration
	quiet          bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "oasresolve <document>",
		Short:   "Resolve an OpenAPI document into a self-contained schema graph",
		Long:    `oasresolve loads an OpenAPI 3.x document, follows every local and remote reference, flattens composition, and prints the resolved schemas, operations, and diagnostics.`,
		Version: version,
		Args:    cobra.ExactArgs(1),
		RunE:    run,
	}

	rootCmd.Flags().StringSliceVar(&allowedDomains, "allow-domain", nil, "host allowed for external references (repeatable)")
	rootCmd.Flags().BoolVar(&failFast, "fail-fast", false, "abort on the first fatal error")
	rootCmd.Flags().IntVar(&maxRefDepth, "max-depth", 0, "reference chain depth limit (0 uses default)")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "concurrent resolution workers (0 uses default)")
	rootCmd.Flags().DurationVar(&fetchTimeout, "timeout", 0, "per-document fetch timeout (0 uses default)")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print diagnostics only")

	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	opts := openapi.NewOptions().
		WithAllowedDomains(allowedDomains...).
		WithFailFast(failFast)
	if maxRefDepth > 0 {
		opts = opts.WithMaxRefDepth(maxRefDepth)
	}
	if workers > 0 {
		opts = opts.WithWorkers(workers)
	}
	if fetchTimeout > 0 {
		opts = opts.WithFetchTimeout(fetchTimeout)
	}

	location := args[0]
	graph, err := resolve(cmd, location, opts)
	if err != nil {
		return err
	}

	if !quiet {
		printSummary(graph)
	}

	fatal := false
	for _, diag := range graph.Diagnostics() {
		fatal = fatal || !oaserrors.ErrorCode(diag.Code).IsWarning()
		fmt.Fprintln(os.Stderr, diag.Error())
	}
	if fatal {
		return fmt.Errorf("resolution finished with errors")
	}
	return nil
}

func resolve(cmd *cobra.Command, location string, opts openapi.Options) (*openapi.Graph, error) {
	if isURL(location) {
		return openapi.ResolveURL(cmd.Context(), location, opts)
	}
	dir := filepath.Dir(location)
	base := filepath.Base(location)
	return openapi.ResolveWithOptions(cmd.Context(), os.DirFS(dir), base, opts)
}

func printSummary(graph *openapi.Graph) {
	info := graph.Info()
	if info.Title != "" {
		fmt.Printf("%s %s\n", info.Title, info.Version)
	}

	for name, schema := range graph.Schemas() {
		shape := schema.Type
		if shape == "" {
			shape = "any"
		}
		if schema.Failed {
			shape = "failed"
		}
		fmt.Printf("schema %-30s %s\n", name, shape)
	}
	for op := range graph.Operations() {
		fmt.Printf("%-7s %s\n", op.Method, op.Path)
	}
}

func isURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
