package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/OCAP2/markerpack/internal/config"
	"github.com/OCAP2/markerpack/internal/overlay"
	"github.com/OCAP2/markerpack/internal/packio"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	BinaryName string = "markerpack"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func usage(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: %s [flags] [serve|validate|commands]\n\n", BinaryName)
	fmt.Fprintln(w, "  serve      read JSON command lines from stdin (default)")
	fmt.Fprintln(w, "  validate   load the pack and report broken entities")
	fmt.Fprintln(w, "  commands   list the commands serve accepts")
	fmt.Fprintln(w)
	flags.SetOutput(w)
	flags.PrintDefaults()
}

// run returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet(BinaryName, pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	configDir := flags.String("config-dir", ".", "directory containing "+config.FileName)
	flags.String("pack-dir", "", "marker pack directory (overrides packDir)")
	flags.String("account", "", "account name (overrides account)")
	flags.String("log-level", "", "log level (overrides logLevel)")
	flags.String("storage", "", "memory, sqlite or postgres (overrides storage.type)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			usage(stdout, flags)
			return 0
		}
		fmt.Fprintln(stderr, err)
		usage(stderr, flags)
		return 2
	}

	if err := config.Load(*configDir); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	bindFlags(flags)

	cmd := "serve"
	if flags.NArg() > 0 {
		cmd = strings.ToLower(flags.Arg(0))
	}

	switch cmd {
	case "serve":
		return serveMain(stdin, stdout, stderr)
	case "validate":
		return validate(config.GetString("packDir"), stdout)
	case "commands":
		for _, c := range commandList() {
			fmt.Fprintln(stdout, c)
		}
		return 0
	}
	fmt.Fprintf(stderr, "unknown command %q\n", cmd)
	usage(stderr, flags)
	return 2
}

// bindFlags lets flags that were set explicitly override the config file.
func bindFlags(flags *pflag.FlagSet) {
	keys := map[string]string{
		"pack-dir":  "packDir",
		"account":   "account",
		"log-level": "logLevel",
		"storage":   "storage.type",
	}
	for flag, key := range keys {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			_ = viper.BindPFlag(key, f)
		}
	}
}

func serveMain(stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	serveErr := a.serve(ctx, stdin, stdout)
	if err := a.shutdown(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if serveErr != nil {
		fmt.Fprintln(stderr, serveErr)
		return 1
	}
	return 0
}

// validate exits non-zero when the pack cannot be read or any entity
// was rejected.
func validate(dir string, out io.Writer) int {
	content, entityErrs, err := packio.LoadDir(dir)
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", dir, err)
		return 1
	}
	for _, e := range entityErrs {
		fmt.Fprintln(out, e)
	}
	pack, packErrs := overlay.NewPack("validate", nil, content)
	for _, e := range packErrs {
		fmt.Fprintln(out, e)
	}

	stats := pack.Stats()
	failed := len(entityErrs) + len(packErrs)
	fmt.Fprintf(out, "%d categories, %d markers, %d trails, %d errors\n",
		stats.Categories, stats.Markers, stats.Trails, failed)
	if failed > 0 {
		return 1
	}
	return 0
}
