// Command secnix decrypts SOPS-encrypted secrets using age identities
// derived from operator SSH keys and installs them into a generation-scoped
// directory tree.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/mrkirby153/secnix/logging"
)

var log = logging.NewLogger("CLI")

func main() {
	app := cli.NewApp()
	app.Name = "secnix"
	app.Usage = "declarative SOPS/age secret deployment"
	app.Version = "0.1.0"
	app.ArgsUsage = "<manifest>"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: "enable debug logging",
		},
	}
	app.Before = func(c *cli.Context) error {
		logging.SetVerbose(c.Bool("verbose"))
		return nil
	}
	app.Action = func(c *cli.Context) error {
		return requireManifestArg(c, runInstall)
	}
	app.Commands = []cli.Command{
		{
			Name:      "check",
			Usage:     "validate a manifest without installing anything",
			ArgsUsage: "<manifest>",
			Action: func(c *cli.Context) error {
				return requireManifestArg(c, runCheck)
			},
		},
		{
			Name:      "install",
			Usage:     "decrypt and install secrets per the manifest",
			ArgsUsage: "<manifest>",
			Action: func(c *cli.Context) error {
				return requireManifestArg(c, runInstall)
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Error("secnix failed")
		os.Exit(1)
	}
}

func requireManifestArg(c *cli.Context, fn func(string) error) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("missing required <manifest> argument")
	}
	if err := fn(path); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
