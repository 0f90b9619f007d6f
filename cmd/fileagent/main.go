package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/abshkbh/agentctl/pkg/config"
	"github.com/abshkbh/agentctl/pkg/dispatch"
	"github.com/abshkbh/agentctl/pkg/fileagent"
	"github.com/abshkbh/agentctl/pkg/report"
	"github.com/abshkbh/agentctl/pkg/token"
	"github.com/abshkbh/agentctl/pkg/transport"
)

var (
	agentClient *fileagent.Client
)

func createAgentClient(ctx *cli.Context) (*fileagent.Client, error) {
	clientConfig, err := config.GetClientConfig(ctx.String("config"), !ctx.IsSet("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to get client config: %v", err)
	}
	agentConfig := clientConfig.Files
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
	if err := setLogLevel(level); err != nil {
		return nil, err
	}
	log.Debugf("file agent config: %v", agentConfig)

	if agentConfig.URL == "" {
		return nil, fmt.Errorf("agent url is required, set --url or agents.files.url")
	}

	tok, err := token.New(token.Files, agentConfig.Token, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}
	d, err := dispatch.New(dispatch.Config{
		URL:          agentConfig.URL,
		Token:        tok,
		Convention:   dispatch.FileAgent,
		Transport:    transport.New(agentConfig.Timeout),
		PreviewLimit: agentConfig.PreviewLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	return fileagent.New(d, report.New()), nil
}

func setLogLevel(level string) error {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(parsed)
	return nil
}

func args(ctx *cli.Context, n int, usage string) ([]string, error) {
	if ctx.NArg() < n {
		return nil, fmt.Errorf("usage: %s %s", ctx.Command.Name, usage)
	}
	return ctx.Args().Slice(), nil
}

func printInfo(c context.Context) {
	fmt.Println("Getting server info...")
	payload, err := agentClient.Info(c)
	if err != nil {
		return
	}
	var info struct {
		Server json.RawMessage `json:"server"`
	}
	if err := json.Unmarshal(payload, &info); err != nil || len(info.Server) == 0 {
		fmt.Println(string(payload))
		return
	}
	pretty, err := json.MarshalIndent(info.Server, "", "  ")
	if err != nil {
		fmt.Println(string(info.Server))
		return
	}
	fmt.Println(string(pretty))
}

func selfTest(c context.Context) {
	printInfo(c)
	fmt.Println("\nTesting basic operations...")
	rep := agentClient.SelfTest(c, time.Now())
	if !rep.Passed() {
		log.Warn("self-test finished with failures")
	}
}

func main() {
	app := &cli.App{
		Name:  "fileagent",
		Usage: "Read, write and list files through a remote file agent",
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
				Usage:   "URL of the remote file agent",
				EnvVars: []string{"FILE_AGENT_URL"},
			},
			&cli.StringFlag{
				Name:    "token",
				Aliases: []string{"t"},
				Usage:   "Auth token (default: agent-YYYYMMDD for today)",
				EnvVars: []string{"FILE_AGENT_TOKEN"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Timeout for each request",
				Value: transport.DefaultTimeout,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: "info",
			},
		},
		Before: func(ctx *cli.Context) error {
			var err error
			agentClient, err = createAgentClient(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize agent client: %v", err)
			}
			return nil
		},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() > 0 {
				return fmt.Errorf("unknown command %q", ctx.Args().First())
			}
			selfTest(ctx.Context)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "read",
				Usage:     "Print a remote file",
				ArgsUsage: "<path>",
				Action: func(ctx *cli.Context) error {
					a, err := args(ctx, 1, "<path>")
					if err != nil {
						return err
					}
					if content, ok := agentClient.Read(ctx.Context, a[0]); ok {
						fmt.Print(content)
					}
					return nil
				},
			},
			{
				Name:      "write",
				Usage:     "Write content to a remote file",
				ArgsUsage: "<path> <content>",
				Action: func(ctx *cli.Context) error {
					a, err := args(ctx, 2, "<path> <content>")
					if err != nil {
						return err
					}
					agentClient.Write(ctx.Context, a[0], a[1])
					return nil
				},
			},
			{
				Name:      "list",
				Usage:     "List a remote directory",
				ArgsUsage: "[path]",
				Action: func(ctx *cli.Context) error {
					entries, ok := agentClient.List(ctx.Context, ctx.Args().First())
					if !ok {
						return nil
					}
					for _, e := range entries {
						size := "-"
						if e.Size != nil {
							size = report.Bytes(*e.Size)
						}
						modified := "-"
						if !e.Modified.IsZero() {
							modified = e.Modified.Format(time.DateTime)
						}
						fmt.Printf("%-10s %10s  %s  %s\n", e.Type, size, modified, e.Name)
					}
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a remote file or directory",
				ArgsUsage: "<path>",
				Action: func(ctx *cli.Context) error {
					a, err := args(ctx, 1, "<path>")
					if err != nil {
						return err
					}
					agentClient.Delete(ctx.Context, a[0])
					return nil
				},
			},
			{
				Name:      "exists",
				Usage:     "Check whether a remote path exists",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "strict",
						Usage: "Report unknown instead of false when the check itself fails",
					},
				},
				Action: func(ctx *cli.Context) error {
					a, err := args(ctx, 1, "<path>")
					if err != nil {
						return err
					}
					if ctx.Bool("strict") {
						fmt.Printf("File exists: %s\n", agentClient.Stat(ctx.Context, a[0]))
						return nil
					}
					fmt.Printf("File exists: %t\n", agentClient.Exists(ctx.Context, a[0]))
					return nil
				},
			},
			{
				Name:      "mkdir",
				Usage:     "Create a remote directory",
				ArgsUsage: "<path>",
				Action: func(ctx *cli.Context) error {
					a, err := args(ctx, 1, "<path>")
					if err != nil {
						return err
					}
					agentClient.Mkdir(ctx.Context, a[0])
					return nil
				},
			},
			{
				Name:      "chmod",
				Usage:     "Change permissions of a remote path",
				ArgsUsage: "<path> <mode>",
				Action: func(ctx *cli.Context) error {
					a, err := args(ctx, 2, "<path> <mode>")
					if err != nil {
						return err
					}
					agentClient.Chmod(ctx.Context, a[0], a[1])
					return nil
				},
			},
			{
				Name:  "info",
				Usage: "Show remote server information",
				Action: func(ctx *cli.Context) error {
					printInfo(ctx.Context)
					return nil
				},
			},
			{
				Name:  "selftest",
				Usage: "Run the write/read/exists/list/delete self-test",
				Action: func(ctx *cli.Context) error {
					selfTest(ctx.Context)
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
