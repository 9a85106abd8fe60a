package cmd

import (
	"encoding/json"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/webcontainer-demo/livedemo/common"
	"github.com/webcontainer-demo/livedemo/hydrate"
	"github.com/webcontainer-demo/livedemo/mount"
)

type hydrateArgument struct {
	manifestURL string
	contentURL  string
	routines    int
	timeout     time.Duration
}

func bindHydrateFlags(cmd *cobra.Command, args *hydrateArgument) {
	cmd.Flags().StringVar(&args.manifestURL, "manifest-url", "", "URL of the published manifest")
	cmd.MarkFlagRequired("manifest-url")
	cmd.Flags().StringVar(&args.contentURL, "content-url", "", "Base URL the file contents are served under")
	cmd.MarkFlagRequired("content-url")
	cmd.Flags().IntVar(&args.routines, "routines", 16, "Max number of concurrent content requests")
	cmd.Flags().DurationVar(&args.timeout, "timeout", 30*time.Second, "Timeout of each request")
}

func newHydrator(args hydrateArgument) *hydrate.Hydrator {
	hydrator, err := hydrate.New(hydrate.Config{
		ManifestURL:    args.manifestURL,
		ContentBaseURL: args.contentURL,
		Routines:       args.routines,
		Timeout:        args.timeout,
	}, common.StandardLogOption())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize hydrator")
	}

	return hydrator
}

var (
	hydrateArgs struct {
		hydrateArgument
		out string
	}

	hydrateCmd = &cobra.Command{
		Use:   "hydrate",
		Short: "Fetch a published manifest and the file contents, and print the resulting mount tree",
		Run:   hydrateTree,
	}
)

func init() {
	bindHydrateFlags(hydrateCmd, &hydrateArgs.hydrateArgument)
	hydrateCmd.Flags().StringVar(&hydrateArgs.out, "out", "", "Write the mount tree to a file instead of stdout")

	rootCmd.AddCommand(hydrateCmd)
}

func hydrateTree(*cobra.Command, []string) {
	ctx, stop := signalContext()
	defer stop()

	mountTree, err := newHydrator(hydrateArgs.hydrateArgument).Hydrate(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to hydrate")
	}

	if err := writeMountTree(mountTree, hydrateArgs.out); err != nil {
		logrus.WithError(err).Fatal("Failed to write mount tree")
	}
}

func writeMountTree(mountTree mount.Tree, out string) error {
	data, err := json.MarshalIndent(mountTree, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if len(out) == 0 {
		_, err = os.Stdout.Write(data)
		return err
	}

	return os.WriteFile(out, data, 0644)
}
