package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/coopco/toolbridge/internal/providers"
)

func chatCmd(a *app) *cobra.Command {
	var (
		system    string
		withTools bool
	)
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one chat turn to an OpenAI-compatible endpoint (the local gateway by default)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			req := providers.ChatRequest{
				Model:        a.cfg.Chat.Model,
				SystemPrompt: system,
				Messages:     []providers.Message{{Role: "user", Content: strings.Join(args, " ")}},
			}
			if withTools {
				reg, err := buildRegistry(a.cfg)
				if err != nil {
					return err
				}
				req.Tools = reg.FunctionDefinitions()
				if req.SystemPrompt == "" {
					req.SystemPrompt = "You can call these tools:\n" + reg.PromptCatalogue()
				}
			}

			p := providers.NewOpenAICompatProvider(a.cfg.Chat.APIKey, chatBaseURL(a), a.cfg.Chat.Model)
			resp, err := p.Chat(ctx, req)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp.Content)
			if resp.ToolUsed != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), color.HiBlackString("(tool: %s)", resp.ToolUsed))
			}
			for _, tc := range resp.ToolCalls {
				fmt.Fprintln(cmd.ErrOrStderr(), color.HiBlackString("(tool call: %s %s)", tc.Name, tc.Arguments))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "System prompt")
	cmd.Flags().BoolVar(&withTools, "with-tools", false, "Advertise the registered tools as function definitions and, without --system, describe them in the system prompt")
	return cmd
}

// chatBaseURL falls back to the configured local gateway.
func chatBaseURL(a *app) string {
	if a.cfg.Chat.BaseURL != "" {
		return a.cfg.Chat.BaseURL
	}
	host := a.cfg.Gateway.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(a.cfg.Gateway.Port)) + "/v1"
}
