package main

import (
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const projectVersion = "0.1.0"

func main() {
	app := &cli.App{
		Name:                 "gosignal",
		Usage:                "Pairs idle peers and relays WebRTC negotiation messages between them",
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			serveCommand,
		},
		Action:  runServe,
		Flags:   append(globalFlags(), serveFlags()...),
		Version: projectVersion,
		Before:  setLogLevel,
		ExitErrHandler: func(_ *cli.Context, theErr error) {
			if theErr != nil && logrus.GetLevel() < logrus.DebugLevel {
				logrus.Error(
					"gosignal failed. For verbose output, please use `gosignal --debug <your-command>`",
				)
			}
		},
	}

	if runErr := app.Run(os.Args); runErr != nil {
		log.Fatal(runErr)
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Be more verbose when logging stuff",
		},
		&cli.BoolFlag{
			Name:  "trace",
			Usage: "Be even more verbose when logging stuff, including relayed payloads",
		},
	}
}

func setLogLevel(c *cli.Context) error {
	if c.IsSet("trace") {
		logrus.Warn("Log level set to trace")
		logrus.SetLevel(logrus.TraceLevel)
	} else if c.IsSet("debug") {
		logrus.Warn("Log level set to debug")
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
	return nil
}
