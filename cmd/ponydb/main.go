// Package main is the ponydb maintenance CLI. It drives the storage and
// execution core directly (open / check-and-repair / an interactive shell
// for manual testing); the SQL parser, planner, and client wire protocol
// remain out of scope and are not implemented here.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ponydb/internal/config"
	"ponydb/internal/engine"
	"ponydb/internal/types"
)

type openFlags struct {
	configPath string
	dataDir    string
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "ponydb",
		Short: "Maintenance CLI for the ponydb storage engine",
	}

	rootCmd.AddCommand(openCmd())
	rootCmd.AddCommand(checkAndRepairCmd())
	rootCmd.AddCommand(shellCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(flags *openFlags) (config.Config, error) {
	var cfg config.Config
	var err error
	if flags.configPath != "" {
		cfg, err = config.Load(flags.configPath)
	} else {
		cfg = config.Defaults()
	}
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if flags.dataDir != "" {
		cfg.DataDir = flags.dataDir
	}
	return cfg, nil
}

func addOpenFlags(cmd *cobra.Command, flags *openFlags) {
	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Path to a TOML config file")
	cmd.Flags().StringVarP(&flags.dataDir, "data-dir", "d", "", "Override the configured data directory")
}

func openCmd() *cobra.Command {
	flags := &openFlags{}
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open (creating if absent) a database and report its data directory",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			e, err := engine.Open(cfg)
			if err != nil {
				return fmt.Errorf("open %q: %w", cfg.DataDir, err)
			}
			defer e.Close()
			fmt.Printf("opened %s\n", cfg.DataDir)
			return nil
		},
	}
	addOpenFlags(cmd, flags)
	return cmd
}

func checkAndRepairCmd() *cobra.Command {
	flags := &openFlags{}
	cmd := &cobra.Command{
		Use:   "check-and-repair",
		Short: "Fix and replay every table's underlying stores",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			e, err := engine.Open(cfg)
			if err != nil {
				return fmt.Errorf("open %q: %w", cfg.DataDir, err)
			}
			defer e.Close()
			if err := e.CheckAndRepair(); err != nil {
				return fmt.Errorf("check-and-repair: %w", err)
			}
			fmt.Println("check-and-repair complete")
			return nil
		},
	}
	addOpenFlags(cmd, flags)
	return cmd
}

func shellCmd() *cobra.Command {
	flags := &openFlags{}
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive create-table / insert / select shell for manual testing",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			e, err := engine.Open(cfg)
			if err != nil {
				return fmt.Errorf("open %q: %w", cfg.DataDir, err)
			}
			defer e.Close()
			return runShell(e, os.Stdin, os.Stdout)
		},
	}
	addOpenFlags(cmd, flags)
	return cmd
}

// runShell is a tiny line-oriented front end with no SQL parser behind
// it: each command maps directly to an engine/txn call, standing in for
// the StatementTree/QueryPlanNode the real core consumes from an external
// planner (spec §1).
//
//	create <table> <col:KIND[:notnull]>...
//	insert <table> <value>...
//	select <table>
//	quit
func runShell(e *engine.Engine, in *os.File, out *os.File) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "ponydb> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			if err := runShellLine(e, out, line); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
		fmt.Fprint(out, "ponydb> ")
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

func runShellLine(e *engine.Engine, out *os.File, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "quit", "exit":
		os.Exit(0)
	case "create":
		return shellCreate(e, fields[1:])
	case "insert":
		return shellInsert(e, fields[1:])
	case "select":
		return shellSelect(e, out, fields[1:])
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
	return nil
}

func shellCreate(e *engine.Engine, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: create <table> <col:KIND[:notnull]>...")
	}
	def := &types.TableDef{Name: args[0]}
	for _, spec := range args[1:] {
		parts := strings.Split(spec, ":")
		col := types.ColumnDef{Name: parts[0], Kind: types.KindNumeric}
		if len(parts) > 1 {
			kind, err := parseKind(parts[1])
			if err != nil {
				return err
			}
			col.Kind = kind
		}
		if len(parts) > 2 && parts[2] == "notnull" {
			col.NotNull = true
		}
		if err := def.AddColumn(col); err != nil {
			return err
		}
	}
	def.MarkImmutable()
	_, err := e.CreateTable(def)
	return err
}

func parseKind(s string) (types.Kind, error) {
	switch strings.ToUpper(s) {
	case "NUMERIC":
		return types.KindNumeric, nil
	case "STRING":
		return types.KindString, nil
	case "BOOLEAN":
		return types.KindBoolean, nil
	default:
		return 0, fmt.Errorf("unsupported column kind %q", s)
	}
}

func shellInsert(e *engine.Engine, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: insert <table> <value>...")
	}
	tbl := e.Table(args[0])
	if tbl == nil {
		return fmt.Errorf("no such table %q", args[0])
	}
	values := make([]types.TObject, len(args)-1)
	for i, raw := range args[1:] {
		col := tbl.Def.Columns[i]
		v, err := parseValue(col.Kind, raw)
		if err != nil {
			return err
		}
		values[i] = v
	}
	tx := e.Begin()
	if _, err := tx.InsertRow(tbl, values); err != nil {
		return err
	}
	return tx.Commit()
}

func parseValue(kind types.Kind, raw string) (types.TObject, error) {
	switch kind {
	case types.KindNumeric:
		n, err := types.ParseNumeric(raw)
		if err != nil {
			return types.TObject{}, fmt.Errorf("parse numeric %q: %w", raw, err)
		}
		return types.NumericValue(n), nil
	case types.KindBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return types.TObject{}, fmt.Errorf("parse boolean %q: %w", raw, err)
		}
		return types.Boolean(b), nil
	default:
		return types.PlainString(raw), nil
	}
}

func shellSelect(e *engine.Engine, out *os.File, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: select <table>")
	}
	tbl := e.Table(args[0])
	if tbl == nil {
		return fmt.Errorf("no such table %q", args[0])
	}
	for _, row := range tbl.MasterIndex() {
		cells := make([]string, len(tbl.Def.Columns))
		for c := range cells {
			v, err := tbl.GetCellContents(c, row)
			if err != nil {
				return err
			}
			cells[c] = cellString(v)
		}
		fmt.Fprintln(out, strings.Join(cells, "\t"))
	}
	return nil
}

func cellString(v types.TObject) string {
	if v.IsNull() {
		return "NULL"
	}
	switch v.Kind() {
	case types.KindNumeric:
		return v.Num().String()
	case types.KindBoolean:
		return strconv.FormatBool(v.Bool())
	case types.KindString:
		return v.Text().Value
	default:
		return fmt.Sprintf("%v", v.Raw())
	}
}
