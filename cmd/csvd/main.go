// csvd stores delimited rows in named tables on an embedded key-value engine.
//
//	csvd --data-dir ./data create users --columns id,name,email
//	printf '1,ann,ann@example.com\n' | csvd --data-dir ./data write users
//	csvd --data-dir ./data rows users
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/cockroachdb/errors"
	"github.com/tmlbl/csvd/internal/config"
	"github.com/tmlbl/csvd/internal/storage"
	"github.com/tmlbl/csvd/internal/table"
	"github.com/tmlbl/csvd/pkg/log"
)

type globals struct {
	Config    string `help:"TOML configuration file." type:"path"`
	DataDir   string `help:"Data directory, overrides the configuration." type:"path"`
	Engine    string `help:"Storage engine: pebble, leveldb or bolt."`
	LogLevel  string `help:"Log level."`
	LogFormat string `help:"Log format: console or json."`
}

// load merges the configuration file, when given, with the flags.
func (g globals) load() (*config.Config, error) {
	c := config.NewDefaultConfig()
	if g.Config != "" {
		var err error
		if c, err = config.Load(g.Config); err != nil {
			return nil, err
		}
	}
	if g.DataDir != "" {
		c.DataDir = g.DataDir
	}
	if g.Engine != "" {
		c.Engine = g.Engine
	}
	if g.LogLevel != "" {
		c.LogLevel = g.LogLevel
	}
	if g.LogFormat != "" {
		c.LogFormat = g.LogFormat
	}
	return c, c.Validate()
}

type cli struct {
	Globals globals `embed:""`

	Create createCmd `cmd:"" help:"Define a new table."`
	Get    getCmd    `cmd:"" help:"Show a table definition."`
	Tables tablesCmd `cmd:"" help:"List table definitions."`
	Write  writeCmd  `cmd:"" help:"Write rows to a table, from arguments or one per stdin line."`
	Rows   rowsCmd   `cmd:"" help:"Print the rows of a table in primary key order."`
	Drop   dropCmd   `cmd:"" help:"Delete a table and all of its rows."`
}

// app is bound into every command's Run method.
type app struct {
	store  *table.Store
	stdin  io.Reader
	stdout io.Writer
}

func printDefinition(w io.Writer, def table.Definition) error {
	_, err := fmt.Fprintf(w, "%s\t%s\t%s\n", def.Name, def.DataType, strings.Join(def.Columns, ","))
	return err
}

type createCmd struct {
	Name    string   `arg:"" help:"Table name."`
	Columns []string `required:"" help:"Comma separated column names, in row order."`
	Type    string   `default:"csv" help:"Row format."`
}

func (c *createCmd) Run(a *app) error {
	dt, err := table.ParseDataType(c.Type)
	if err != nil {
		return err
	}
	return a.store.CreateTable(table.Definition{Name: c.Name, DataType: dt, Columns: c.Columns})
}

type getCmd struct {
	Name string `arg:"" help:"Table name."`
}

func (c *getCmd) Run(a *app) error {
	def, ok, err := a.store.GetTable(c.Name)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Newf("table %q not found", c.Name)
	}
	return printDefinition(a.stdout, def)
}

type tablesCmd struct{}

func (c *tablesCmd) Run(a *app) error {
	defs, err := a.store.ListTables()
	if err != nil {
		return err
	}
	for _, def := range defs {
		if err := printDefinition(a.stdout, def); err != nil {
			return err
		}
	}
	return nil
}

type writeCmd struct {
	Table   string   `arg:"" help:"Table name."`
	Records []string `arg:"" optional:"" help:"Records to write. Read from stdin when omitted."`
}

func (c *writeCmd) Run(a *app) error {
	if len(c.Records) > 0 {
		for _, r := range c.Records {
			if err := a.store.WriteRow(c.Table, []byte(r)); err != nil {
				return err
			}
		}
		return nil
	}

	scanner := bufio.NewScanner(a.stdin)
	written := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		// WriteRow keeps the slice, the scanner reuses its buffer
		if err := a.store.WriteRow(c.Table, append([]byte(nil), line...)); err != nil {
			return err
		}
		written++
	}
	log.CLI.Debug().Str("table", c.Table).Int("rows", written).Msg("rows written")
	return scanner.Err()
}

type rowsCmd struct {
	Table string `arg:"" help:"Table name."`
}

func (c *rowsCmd) Run(a *app) error {
	it, err := a.store.ScanRows(c.Table)
	if err != nil {
		return err
	}
	for row, err := range it.All() {
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(a.stdout, "%s\n", row); err != nil {
			return err
		}
	}
	return nil
}

type dropCmd struct {
	Name string `arg:"" help:"Table name."`
}

func (c *dropCmd) Run(a *app) error {
	return a.store.DeleteTable(c.Name)
}

func initLogging(c *config.Config) error {
	level, err := log.ParseLogLevel(c.LogLevel)
	if err != nil {
		return err
	}
	typ, err := log.ParseLoggerType(c.LogFormat)
	if err != nil {
		return err
	}
	log.Init(log.Options{LogLevel: level, Type: typ})
	return nil
}

func run(args []string, stdin io.Reader, stdout io.Writer) (err error) {
	var c cli
	parser, err := kong.New(&c,
		kong.Name("csvd"),
		kong.Description("Tables of delimited rows on an embedded key-value engine."),
		kong.UsageOnError(),
	)
	if err != nil {
		return err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := c.Globals.load()
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return err
	}

	kv, err := storage.Open(cfg)
	if err != nil {
		return err
	}
	store, err := table.NewStore(kv)
	if err != nil {
		_ = kv.Close()
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return ctx.Run(&app{store: store, stdin: stdin, stdout: stdout})
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "csvd: %v\n", err)
		os.Exit(1)
	}
}
