package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/coopco/toolbridge/internal/tools"
)

func toolsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and call tools through the configured dispatcher",
	}
	cmd.AddCommand(toolsListCmd(a), toolsCallCmd(a), toolsPromptCmd(a))
	return cmd
}

func toolsListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			reg, err := buildRegistry(a.cfg)
			if err != nil {
				return err
			}
			disp, release, err := dispatcher(ctx, a.cfg, reg)
			if err != nil {
				return err
			}
			defer release()

			list, err := disp.List(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"tools": list})
			}
			renderTools(cmd.OutOrStdout(), list)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderTools(w io.Writer, list []tools.Summary) {
	if len(list) == 0 {
		fmt.Fprintln(w, color.YellowString("No tools registered"))
		return
	}
	for _, s := range list {
		fmt.Fprintf(w, "%s  %s\n", color.CyanString(s.Name), s.Description)
		if s.InputSchema == nil {
			continue
		}
		required := make(map[string]bool, len(s.InputSchema.Required))
		for _, r := range s.InputSchema.Required {
			required[r] = true
		}
		names := make([]string, 0, len(s.InputSchema.Properties))
		for name := range s.InputSchema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			prop := s.InputSchema.Properties[name]
			marker := "optional"
			if required[name] {
				marker = color.RedString("required")
			}
			fmt.Fprintf(w, "    %-10s %-8s %s  %s\n", name, prop.Type, marker, prop.Description)
		}
		for _, ex := range s.Examples {
			fmt.Fprintf(w, "    %s %s\n", color.HiBlackString("e.g."), ex)
		}
	}
}

func toolsPromptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt",
		Short: "Print the local tool catalogue as system-prompt text",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := buildRegistry(a.cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reg.PromptCatalogue())
			return nil
		},
	}
}

func toolsCallCmd(a *app) *cobra.Command {
	var rawArgs string
	cmd := &cobra.Command{
		Use:   "call <name>",
		Short: "Invoke a tool and print its text output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var arguments map[string]any
			if strings.TrimSpace(rawArgs) != "" {
				if err := json.Unmarshal([]byte(rawArgs), &arguments); err != nil {
					return fmt.Errorf("--args must be a JSON object: %w", err)
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			reg, err := buildRegistry(a.cfg)
			if err != nil {
				return err
			}
			disp, release, err := dispatcher(ctx, a.cfg, reg)
			if err != nil {
				return err
			}
			defer release()

			res, err := disp.Invoke(ctx, tools.Request{Name: args[0], Arguments: arguments})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Text())
			return nil
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "", `Tool arguments as a JSON object, e.g. '{"service":"web"}'`)
	return cmd
}
