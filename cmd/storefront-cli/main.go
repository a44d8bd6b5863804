package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-storefront/pkg/diagnostics"
	"github.com/goliatone/go-storefront/pkg/store"
	"github.com/goliatone/go-storefront/pkg/theme"
)

const usage = `usage: storefront-cli [global flags] <command> [flags]

commands:
  render    render a page (prompts for the page when -page is omitted)
  sections  render the sections of a page or of a layout as JSON
  schema    print the editor schema of every section type
  validate  check section settings against the section schema
  import    copy a theme directory into the sqlite store
`

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("storefront-cli")
	}
}

type app struct {
	cfg      *Config
	logger   zerolog.Logger
	store    store.Store
	recorder *diagnostics.Memory
	editor   bool
	close    func() error
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	global := flag.NewFlagSet("storefront-cli", flag.ContinueOnError)
	global.Usage = func() { fmt.Fprint(global.Output(), usage); global.PrintDefaults() }
	configPath := global.String("config", "", "Path to a YAML config file")
	themeDir := global.String("theme", "", "Directory containing the theme/ tree")
	dsn := global.String("sqlite", "", "SQLite DSN holding theme configs")
	locale := global.String("locale", "", "Request locale")
	currency := global.String("currency", "", "Request currency")
	compatFlag := global.String("compat", "", "Compatibility mode: on, off, or empty to follow store settings")
	editor := global.Bool("editor", false, "Render editor markup")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *themeDir != "" {
		cfg.Theme.Dir = *themeDir
	}
	if *dsn != "" {
		cfg.Theme.SQLite = *dsn
	}
	if *locale != "" {
		cfg.Store.Locale = *locale
	}
	if *currency != "" {
		cfg.Store.Currency = *currency
	}
	switch *compatFlag {
	case "":
	case "on", "off":
		enabled := *compatFlag == "on"
		cfg.Store.Compatibility = &enabled
	default:
		return fmt.Errorf("invalid -compat %q", *compatFlag)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	a := &app{cfg: cfg, logger: newLogger(cfg.Log), recorder: diagnostics.NewMemory(), editor: *editor}
	a.store, a.close, err = openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	command, rest := global.Arg(0), global.Args()[1:]
	switch command {
	case "render":
		err = a.render(ctx, rest, stdout)
	case "sections":
		err = a.sections(ctx, rest, stdout)
	case "schema":
		err = a.schema(ctx, rest, stdout)
	case "validate":
		err = a.validate(ctx, rest, stdout)
	case "import":
		err = a.importTheme(ctx, rest)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
	if n := len(a.recorder.Events()); n > 0 {
		a.logger.Info().Int("diagnostics", n).Msg("render finished with diagnostics")
	}
	return err
}

func newLogger(cfg LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.WarnLevel
	}
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if cfg.JSON {
		out = os.Stderr
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// openStore picks the sqlite store when a DSN is configured, otherwise the
// theme directory. Both are cached for the lifetime of the command.
func openStore(ctx context.Context, cfg *Config) (store.Store, func() error, error) {
	if cfg.Theme.SQLite != "" {
		db, err := store.OpenSQLite(ctx, cfg.Theme.SQLite)
		if err != nil {
			return nil, nil, err
		}
		return store.NewCached(db), db.Close, nil
	}
	info, err := os.Stat(cfg.Theme.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("theme dir: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("theme dir %s is not a directory", cfg.Theme.Dir)
	}
	return store.NewCached(store.NewFS(os.DirFS(cfg.Theme.Dir))), func() error { return nil }, nil
}

func (a *app) newTheme() *theme.Theme {
	options := []theme.Option{
		theme.WithRecorder(diagnostics.Multi{diagnostics.NewZerolog(a.logger), a.recorder}),
		theme.WithStoreSettings(a.cfg.StoreSettings()),
		theme.WithRequest(theme.Request{
			Path:     a.cfg.Request.Path,
			Host:     a.cfg.Request.Host,
			Locale:   a.cfg.Store.Locale,
			Currency: strings.ToUpper(a.cfg.Store.Currency),
		}),
		theme.WithEditorMode(a.editor),
	}
	if a.cfg.Store.Compatibility != nil {
		options = append(options, theme.WithCompatibility(*a.cfg.Store.Compatibility))
	}
	if a.cfg.Store.AssetBase != "" {
		options = append(options, theme.WithAssetBase(a.cfg.Store.AssetBase))
	}
	return theme.New(a.store, options...)
}

func (a *app) render(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	page := fs.String("page", "", "Page id, e.g. index or products/show")
	dataPath := fs.String("data", "", "JSON or YAML file with page data")
	bare := fs.Bool("bare", false, "Skip the layout")
	outPath := fs.String("out", "", "Write output to file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, err := readData(*dataPath)
	if err != nil {
		return err
	}
	if *page == "" {
		if *page, err = a.pickPage(ctx); err != nil {
			return err
		}
	}

	t := a.newTheme()
	var out *theme.Output
	if *bare {
		out, err = t.RenderPageTemplate(ctx, *page, data)
	} else {
		out, err = t.RenderPage(ctx, *page, data)
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", *page, err)
	}
	a.logger.Debug().Str("page", *page).Str("layout", out.Layout).Str("content_type", out.ContentType).Msg("rendered")
	return writeOutput(*outPath, []byte(out.Body), stdout)
}

func (a *app) sections(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("sections", flag.ContinueOnError)
	page := fs.String("page", "", "Section group page id")
	layout := fs.String("layout", "", "Layout whose section groups to render")
	dataPath := fs.String("data", "", "JSON or YAML file with page data")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*page == "") == (*layout == "") {
		return errors.New("sections: exactly one of -page or -layout is required")
	}
	data, err := readData(*dataPath)
	if err != nil {
		return err
	}

	t := a.newTheme()
	result := map[string][]theme.RenderedSection{}
	if *page != "" {
		list, err := t.GetPageSections(ctx, *page)
		if err != nil {
			return err
		}
		rendered, err := t.RenderSectionConfigs(ctx, list, data)
		if err != nil {
			return err
		}
		result[*page] = rendered
	} else {
		groups, err := t.GetLayoutSectionGroups(ctx, *layout)
		if err != nil {
			return err
		}
		for _, group := range groups {
			list, err := t.GetSectionGroupConfigs(ctx, group)
			if err != nil {
				return err
			}
			rendered, err := t.RenderSectionConfigs(ctx, list, data)
			if err != nil {
				return err
			}
			result[group.Name] = rendered
		}
	}
	return writeJSON(stdout, result)
}

func (a *app) schema(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("schema", flag.ContinueOnError)
	outPath := fs.String("out", "", "Write output to file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	schemas, err := a.newTheme().EditorSchema(ctx)
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(map[string]any{"components": map[string]any{"schemas": schemas}}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	return writeOutput(*outPath, append(body, '\n'), stdout)
}

func (a *app) validate(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	section := fs.String("section", "", "Section type")
	raw := fs.String("settings", "{}", "Settings as a JSON object")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *section == "" {
		return errors.New("validate: -section is required")
	}
	values := map[string]any{}
	if err := json.Unmarshal([]byte(*raw), &values); err != nil {
		return fmt.Errorf("validate: settings: %w", err)
	}
	res, err := a.newTheme().ValidateSectionSettings(ctx, *section, values)
	if err != nil {
		return err
	}
	if err := writeJSON(stdout, res); err != nil {
		return err
	}
	if !res.Valid {
		return fmt.Errorf("validate: %d issue(s) in %s settings", len(res.Issues), *section)
	}
	return nil
}

// importTheme copies every config under a theme directory into the sqlite
// store.
func (a *app) importTheme(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	from := fs.String("from", "", "Directory containing the theme/ tree")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *from == "" || a.cfg.Theme.SQLite == "" {
		return errors.New("import: -from and a sqlite DSN are required")
	}
	db, err := store.OpenSQLite(ctx, a.cfg.Theme.SQLite)
	if err != nil {
		return err
	}
	defer db.Close()

	configs, err := store.NewFS(os.DirFS(*from)).ListConfigs(ctx, store.Root+"/")
	if err != nil {
		return err
	}
	for _, cfg := range configs {
		if err := db.Put(ctx, cfg); err != nil {
			return err
		}
	}
	a.logger.Info().Int("configs", len(configs)).Str("from", *from).Msg("imported theme")
	return nil
}

// pickPage prompts for one of the theme's pages.
func (a *app) pickPage(ctx context.Context) (string, error) {
	lister, ok := a.store.(store.Lister)
	if !ok {
		return "", errors.New("render: -page is required")
	}
	configs, err := lister.ListConfigs(ctx, store.ThemePath(store.CategoryPages, "")+"/")
	if err != nil {
		return "", err
	}
	options := make([]string, 0, len(configs))
	for _, cfg := range configs {
		_, name := store.Describe(cfg.FilePath)
		options = append(options, name)
	}
	if len(options) == 0 {
		return "", errors.New("render: theme has no pages")
	}
	var page string
	prompt := &survey.Select{Message: "Page to render", Options: options}
	if err := survey.AskOne(prompt, &page); err != nil {
		return "", fmt.Errorf("render: pick page: %w", err)
	}
	return page, nil
}

func readData(path string) (map[string]any, error) {
	data := map[string]any{}
	if path == "" {
		return data, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse data %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func writeOutput(path string, body []byte, stdout io.Writer) error {
	if path == "" {
		_, err := stdout.Write(body)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
