// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/tombee/exprkit/internal/config"
	"github.com/tombee/exprkit/internal/log"
	"github.com/tombee/exprkit/pkg/scope"
	"github.com/tombee/exprkit/sdk"
)

type evalOptions struct {
	vars       []string
	varsFile   string
	beansFile  string
	configPath string
	output     string
}

func newEvalCommand() *cobra.Command {
	opts := &evalOptions{}

	cmd := &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate an expression against ad-hoc variables",
		Long: `Evaluate a ${...} expression against variables supplied on the
command line or from a YAML file.

Examples:
  exprkit eval '${amount * 2}' --var amount=21
  exprkit eval '${has(tags, "priority")}' --vars-file vars.yaml
  exprkit eval 'Hello ${name}!' --var name=world`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, args[0], opts)
		},
	}

	addEvalFlags(cmd.Flags(), opts)
	return cmd
}

func addEvalFlags(fs *pflag.FlagSet, opts *evalOptions) {
	fs.StringArrayVar(&opts.vars, "var", nil, "variable as name=value (value parsed as YAML; repeatable)")
	fs.StringVar(&opts.varsFile, "vars-file", "", "YAML file of variables")
	fs.StringVar(&opts.beansFile, "beans-file", "", "YAML file of read-only beans")
	fs.StringVar(&opts.configPath, "config", "", "tool configuration file")
	fs.StringVarP(&opts.output, "output", "o", "text", "output format (text, json)")
}

func runEval(cmd *cobra.Command, expressionText string, opts *evalOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	logger := log.New(&log.Config{
		Level:     cfg.Log.Level,
		Format:    log.Format(cfg.Log.Format),
		Output:    cmd.ErrOrStderr(),
		AddSource: cfg.Log.Source,
	})

	vars, err := collectVariables(opts)
	if err != nil {
		return err
	}

	sdkOpts := []sdk.Option{
		sdk.WithLogger(logger),
		sdk.WithJQLimits(cfg.JQ.Timeout, cfg.JQ.MaxInputSize),
	}
	if cfg.Eval.ParseCacheLimit > 0 {
		sdkOpts = append(sdkOpts, sdk.WithParseCacheLimit(cfg.Eval.ParseCacheLimit))
	}
	if opts.beansFile != "" {
		beans, err := loadYAMLMap(opts.beansFile)
		if err != nil {
			return err
		}
		sdkOpts = append(sdkOpts, sdk.WithBeans(beans))
	}

	mgr, err := sdk.New(sdkOpts...)
	if err != nil {
		return err
	}

	expr, err := mgr.CreateExpression(expressionText)
	if err != nil {
		return err
	}

	value, err := expr.Evaluate(mgr.VariableContext(scope.MapVariables(vars)))
	if err != nil {
		return err
	}

	return printValue(cmd, value, opts.output)
}

func collectVariables(opts *evalOptions) (map[string]any, error) {
	vars := make(map[string]any)

	if opts.varsFile != "" {
		fromFile, err := loadYAMLMap(opts.varsFile)
		if err != nil {
			return nil, err
		}
		for k, v := range fromFile {
			vars[k] = v
		}
	}

	// --var overrides file-supplied values.
	for _, pair := range opts.vars {
		name, raw, found := strings.Cut(pair, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid --var %q: expected name=value", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		vars[name] = value
	}

	return vars, nil
}

func loadYAMLMap(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	out := make(map[string]any)
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return out, nil
}

func printValue(cmd *cobra.Command, value any, format string) error {
	switch format {
	case "json":
		encoded, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	case "text":
		fmt.Fprintf(cmd.OutOrStdout(), "%v\n", value)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	return nil
}
