package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/abshkbh/agentctl/pkg/config"
	"github.com/abshkbh/agentctl/pkg/diagnose"
	"github.com/abshkbh/agentctl/pkg/dispatch"
	"github.com/abshkbh/agentctl/pkg/report"
	"github.com/abshkbh/agentctl/pkg/token"
	"github.com/abshkbh/agentctl/pkg/transport"
)

var (
	workflow *diagnose.Workflow
)

func createWorkflow(ctx *cli.Context) (*diagnose.Workflow, error) {
	clientConfig, err := config.GetClientConfig(ctx.String("config"), !ctx.IsSet("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to get client config: %v", err)
	}
	agentConfig := clientConfig.Debug
	if ctx.IsSet("url") {
		agentConfig.URL = ctx.String("url")
	}
	if ctx.IsSet("token") {
		agentConfig.Token = ctx.String("token")
	}
	if ctx.IsSet("timeout") {
		agentConfig.Timeout = ctx.Duration("timeout")
	}
	level := clientConfig.LogLevel
	if ctx.IsSet("log-level") {
		level = ctx.String("log-level")
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(parsed)
	log.Debugf("debug agent config: %v", agentConfig)

	if agentConfig.URL == "" {
		return nil, fmt.Errorf("agent url is required, set --url or agents.debug.url")
	}

	tok, err := token.New(token.Debug, agentConfig.Token, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}
	d, err := dispatch.New(dispatch.Config{
		URL:          agentConfig.URL,
		Token:        tok,
		Convention:   dispatch.DebugAgent,
		Transport:    transport.New(agentConfig.Timeout),
		PreviewLimit: agentConfig.PreviewLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	return diagnose.New(diagnose.Config{
		Dispatcher:  d,
		Prompter:    diagnose.NewTerminalPrompter(),
		Reporter:    report.New(),
		ArtifactDir: ctx.String("artifact-dir"),
		Target:      agentConfig.URL,
		Token:       tok.Current(),
	}), nil
}

func main() {
	app := &cli.App{
		Name:  "remotedebug",
		Usage: "Diagnose a remote host through the debug agent",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "./config.yaml",
			},
			&cli.StringFlag{
				Name:    "url",
				Aliases: []string{"u"},
				Usage:   "URL of the remote debug agent",
				EnvVars: []string{"DEBUG_AGENT_URL"},
			},
			&cli.StringFlag{
				Name:    "token",
				Aliases: []string{"t"},
				Usage:   "Auth token (default: debug-YYYYMMDD for today)",
				EnvVars: []string{"DEBUG_AGENT_TOKEN"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Timeout for each request",
				Value: transport.DefaultTimeout,
			},
			&cli.StringFlag{
				Name:  "artifact-dir",
				Usage: "Directory for saved artifacts such as phpinfo.html",
				Value: ".",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: "info",
			},
		},
		Before: func(ctx *cli.Context) error {
			var err error
			workflow, err = createWorkflow(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize debug client: %v", err)
			}
			return nil
		},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() > 0 {
				return fmt.Errorf("unknown command %q", ctx.Args().First())
			}
			workflow.Run(ctx.Context)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "exec",
				Usage:     "Run an allowlisted diagnostic command on the agent",
				ArgsUsage: "<command>",
				Action: func(ctx *cli.Context) error {
					if ctx.NArg() == 0 {
						return fmt.Errorf("command argument required")
					}
					line := strings.Join(ctx.Args().Slice(), " ")
					if _, err := diagnose.NormalizeCommand(line); err != nil {
						return err
					}
					workflow.Execute(ctx.Context, line)
					return nil
				},
			},
			{
				Name:      "read",
				Usage:     "Print one of the files the agent allows reading",
				ArgsUsage: "<file>",
				Action: func(ctx *cli.Context) error {
					if ctx.NArg() != 1 {
						return fmt.Errorf("usage: read <file>")
					}
					workflow.ReadFile(ctx.Context, ctx.Args().First())
					return nil
				},
			},
			{
				Name:      "write-htaccess",
				Usage:     "Replace the remote .htaccess with a local file",
				ArgsUsage: "<local file>",
				Action: func(ctx *cli.Context) error {
					if ctx.NArg() != 1 {
						return fmt.Errorf("usage: write-htaccess <local file>")
					}
					content, err := os.ReadFile(ctx.Args().First())
					if err != nil {
						return fmt.Errorf("failed to read %s: %w", ctx.Args().First(), err)
					}
					workflow.WriteHtaccess(ctx.Context, string(content))
					return nil
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
