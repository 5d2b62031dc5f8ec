// Command m3uconvert turns M3U playlists into the channel mapping format
// served by the failover server.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"channel-failover/internal/failover"
	"channel-failover/internal/platform/config"

	"github.com/spf13/cobra"
)

type options struct {
	tag    string
	output string
	merge  string
	keep   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "m3uconvert <playlist.m3u> [more.m3u8...]",
		Short: "Convert M3U playlists into a channel mapping",
		Long: `Each playlist is parsed into channel -> candidate lists. By default the
mapping is written next to the source as <name>.json and the source is
removed. With --merge the result is merged into an existing mapping
document instead, extending channels without duplicating candidates.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.tag, "tag", "t", config.GetEnv("CHANNEL_TAG", failover.DefaultLabelAttribute), "EXTINF attribute holding the channel label")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the mapping here (\"-\" for stdout); only with a single input")
	cmd.Flags().StringVarP(&opts.merge, "merge", "m", "", "merge into this mapping document instead of writing per-file JSON")
	cmd.Flags().BoolVarP(&opts.keep, "keep", "k", false, "keep source playlists after conversion")
	cmd.MarkFlagsMutuallyExclusive("output", "merge")

	return cmd
}

func run(cmd *cobra.Command, opts options, args []string) error {
	if opts.output != "" && len(args) > 1 {
		return fmt.Errorf("--output takes a single input, got %d", len(args))
	}

	var store *failover.MappingStore
	if opts.merge != "" {
		store = failover.NewMappingStore(failover.NewFileDocument(opts.merge))
	}

	for _, src := range args {
		m, err := failover.ParseFile(src, opts.tag)
		if err != nil {
			return err
		}

		switch {
		case store != nil:
			var added int
			if err := store.Update(func(doc *failover.ChannelMapping) bool {
				added = doc.Merge(m)
				return added > 0
			}); err != nil {
				return fmt.Errorf("merge %s: %w", src, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d channels, %d new candidates merged into %s\n", src, m.Len(), added, opts.merge)
		default:
			dst := opts.output
			if dst == "" {
				dst = strings.TrimSuffix(src, filepath.Ext(src)) + ".json"
			}
			data, err := failover.EncodeMapping(m)
			if err != nil {
				return err
			}
			if dst == "-" {
				if _, err := cmd.OutOrStdout().Write(data); err != nil {
					return err
				}
			} else {
				if err := failover.NewFileDocument(dst).Write(data); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d channels written to %s\n", src, m.Len(), dst)
			}
		}

		if !opts.keep {
			if err := os.Remove(src); err != nil {
				return fmt.Errorf("remove %s: %w", src, err)
			}
		}
	}
	return nil
}
