package cmd

import (
	"os"

	"github.com/apex/log"
	clihander "github.com/apex/log/handlers/cli"
	macho "github.com/appsworld/macho-dump"
	"github.com/appsworld/macho-dump/internal/render"
	"github.com/appsworld/macho-dump/pkg/disasm"
	"github.com/appsworld/macho-dump/types"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Execute runs the macho-dump command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

// NewRootCmd returns the macho-dump command with its own viper instance.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "macho-dump <path>",
		Short: "Inspect Mach-O and universal binaries",
		Long: `Print the header, load commands, segments, dylib dependencies,
code signature and entitlements of a Mach-O or universal binary.

With no section flags every core section is printed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		FParseErrWhitelist: cobra.FParseErrWhitelist{
			UnknownFlags: true,
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := cmd.Flags().GetString("config")
			return initConfig(v, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, v, args[0])
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	f := cmd.Flags()
	f.BoolP("load-cmds", "l", false, "print load commands")
	f.BoolP("segments", "s", false, "print segments and sections")
	f.BoolP("dependencies", "d", false, "print dylib dependencies and the dependency tree")
	f.BoolP("codesign", "c", false, "print the code signature")
	f.BoolP("entitlements", "e", false, "print the embedded entitlements")
	f.BoolP("all", "a", false, "print every core section")
	f.BoolP("disass", "D", false, "disassemble the start of __TEXT,__text")
	f.Int("count", disasm.DefaultCount, "number of instructions to disassemble")
	f.Bool("swift", false, "list Swift metadata sections")
	f.Bool("dwarf", false, "list DWARF compile units")
	f.String("arch", "", "universal binary slice to inspect (e.g. arm64, x86_64)")
	f.Bool("json", false, "print JSON")
	f.Bool("color", false, "colorize output")
	f.BoolP("verbose", "V", false, "verbose output")
	f.String("config", "", "YAML config file")
	bindFlags(v, f)

	return cmd
}

// bindFlags makes every flag readable as dump.<name>, so a config file can
// set defaults the command line overrides.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(fl *pflag.Flag) {
		if fl.Name == "config" {
			return
		}
		_ = v.BindPFlag("dump."+fl.Name, fl)
	})
}

func initConfig(v *viper.Viper, cfg string) error {
	log.SetHandler(clihander.Default)

	if cfg != "" {
		v.SetConfigFile(cfg)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config %s", cfg)
		}
	}

	if v.GetBool("dump.verbose") {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	color.NoColor = !v.GetBool("dump.color")
	return nil
}

func options(v *viper.Viper) render.Options {
	opts := render.Options{
		LoadCommands: v.GetBool("dump.load-cmds"),
		Segments:     v.GetBool("dump.segments"),
		Dependencies: v.GetBool("dump.dependencies"),
		CodeSign:     v.GetBool("dump.codesign"),
		Entitlements: v.GetBool("dump.entitlements"),
	}
	if v.GetBool("dump.all") || !opts.Any() {
		opts = render.All()
	}
	opts.Header = true
	opts.Swift = v.GetBool("dump.swift")
	opts.Disassemble = v.GetBool("dump.disass")
	opts.DWARF = v.GetBool("dump.dwarf")
	opts.Count = v.GetInt("dump.count")
	return opts
}

func run(cmd *cobra.Command, v *viper.Viper, path string) error {
	var conf macho.FileConfig
	if a := v.GetString("dump.arch"); a != "" {
		cpu, err := types.ParseCPU(a)
		if err != nil {
			return errors.Wrap(err, "invalid --arch")
		}
		conf.Arch = cpu
	}

	log.WithField("path", path).Debug("Parsing MachO")
	m, err := macho.Open(path, conf)
	if err != nil {
		return errors.Wrapf(err, "failed to parse %s", path)
	}

	r, err := macho.Analyze(cmd.Context(), m)
	if err != nil {
		return errors.Wrapf(err, "failed to analyze %s", path)
	}
	if r.CodeSignErr != nil {
		log.WithError(r.CodeSignErr).Debug("code signature")
	}
	if r.EntitlementsErr != nil {
		log.WithError(r.EntitlementsErr).Debug("entitlements")
	}

	opts := options(v)
	if v.GetBool("dump.json") {
		return render.JSON(cmd.OutOrStdout(), r, opts)
	}
	return render.Text(cmd.OutOrStdout(), r, opts)
}
