package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/webcontainer-demo/livedemo/common"
	"github.com/webcontainer-demo/livedemo/tree"
)

type templateArgument struct {
	root     string
	manifest string
	exclude  []string
}

func bindTemplateFlags(cmd *cobra.Command, args *templateArgument) {
	cmd.Flags().StringVar(&args.root, "root", "public/container", "Template directory to snapshot")
	cmd.Flags().StringVar(&args.manifest, "manifest", "public/dir.json", "Path the manifest is published to")
	cmd.Flags().StringSliceVar(&args.exclude, "exclude", nil, "Extra entry names to leave out, besides hidden entries, node_modules and dist")
}

func newPublisher(args templateArgument) *tree.Publisher {
	return tree.NewPublisher(args.root, args.manifest, &tree.Snapshotter{Exclude: args.exclude}, common.StandardLogOption())
}

var (
	snapshotArgs templateArgument

	snapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Snapshot the template directory and publish its manifest",
		Run:   snapshot,
	}
)

func init() {
	bindTemplateFlags(snapshotCmd, &snapshotArgs)

	rootCmd.AddCommand(snapshotCmd)
}

func snapshot(*cobra.Command, []string) {
	published, err := newPublisher(snapshotArgs).Publish()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to publish manifest")
	}

	files, dirs := published.Tree.Count()

	logrus.WithFields(logrus.Fields{
		"manifest": snapshotArgs.manifest,
		"digest":   published.Digest,
		"files":    files,
		"dirs":     dirs,
	}).Info("Manifest published")
}
