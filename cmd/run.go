package cmd

import (
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/webcontainer-demo/livedemo/common"
	"github.com/webcontainer-demo/livedemo/common/api"
	"github.com/webcontainer-demo/livedemo/sandbox"
	"github.com/webcontainer-demo/livedemo/session"
)

var (
	runArgs struct {
		hydrateArgument

		workdir    string
		env        []string
		installCmd []string
		devCmd     []string
		editPath   string
		debounce   time.Duration
		listen     string
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Hydrate the template into a local sandbox, install dependencies and start the dev server",
		Run:   run,
	}
)

func init() {
	bindHydrateFlags(runCmd, &runArgs.hydrateArgument)
	runCmd.Flags().StringVar(&runArgs.workdir, "workdir", "sandbox", "Sandbox working directory")
	runCmd.Flags().StringSliceVar(&runArgs.env, "env", nil, "Extra environment variables of sandbox processes, e.g. KEY=VALUE")
	runCmd.Flags().StringSliceVar(&runArgs.installCmd, "install", session.DefaultInstallCmd, "Dependency installation command, arguments separated by comma")
	runCmd.Flags().StringSliceVar(&runArgs.devCmd, "dev", session.DefaultDevCmd, "Dev server command, arguments separated by comma")
	runCmd.Flags().StringVar(&runArgs.editPath, "edit-path", session.DefaultEditPath, "File updated by editor changes")
	runCmd.Flags().DurationVar(&runArgs.debounce, "debounce", 500*time.Millisecond, "Quiet period before editor changes are written")
	runCmd.Flags().StringVar(&runArgs.listen, "listen", ":8081", "HTTP endpoint of the edit and preview API")

	rootCmd.AddCommand(runCmd)
}

func run(*cobra.Command, []string) {
	ctx, stop := signalContext()
	defer stop()

	mountTree, err := newHydrator(runArgs.hydrateArgument).Hydrate(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to hydrate")
	}

	container, err := sandbox.Boot(runArgs.workdir, runArgs.env, common.StandardLogOption())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to boot sandbox")
	}

	s := session.New(container, os.Stdout, session.Config{
		InstallCmd: runArgs.installCmd,
		DevCmd:     runArgs.devCmd,
		EditPath:   runArgs.editPath,
		Debounce:   runArgs.debounce,
	}, common.StandardLogOption())
	defer func() {
		if err := s.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to tear down sandbox")
		}
	}()

	go func() {
		err := api.ServeContext(ctx, runArgs.listen, api.NewRouter(s.Routes))
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("Edit API stopped")
			stop()
		}
	}()

	err = s.Boot(ctx, mountTree, func(url string) {
		logrus.WithField("url", url).Info("Preview ready")
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to boot session")
		return
	}

	<-ctx.Done()
}
