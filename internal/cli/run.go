package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/filecache/pkg/filecache"
)

const helpFlag = "--help"

// DotEnvFileName is read from the working directory before config files.
// Variables already present in the environment win.
const DotEnvFileName = ".env"

type globalFlags struct {
	workDir    string
	configPath string
	cacheDir   string
	logLevel   string
	help       bool
	remaining  []string
}

// Run is the main entry point. Returns exit code.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	if len(args) < 2 {
		printUsage(out)

		return 0
	}

	flags, err := parseGlobalFlags(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut)

		return 1
	}

	if flags.help {
		printUsage(out)

		return 0
	}

	if len(flags.remaining) == 0 {
		fprintln(errOut, "error:", ErrNoCommand)
		printUsage(errOut)

		return 1
	}

	name := flags.remaining[0]
	cmdArgs := flags.remaining[1:]

	if name == "-h" || name == helpFlag {
		printUsage(out)

		return 0
	}

	if name != "print-config" && name != "shell" && findCommand(cacheCommands(nil, time.Now), name) == nil {
		fprintln(errOut, "error:", fmt.Errorf("%w: %s", ErrUnknownCommand, name))
		printUsage(errOut)

		return 1
	}

	ctx := context.Background()
	o := NewIO(out, errOut)

	// Help never needs the cache; flags are parsed before Exec runs.
	if hasHelpFlag(cmdArgs) && name != "print-config" {
		return commandFor(name, nil, in, env, sigCh).Run(ctx, o, cmdArgs)
	}

	workDir, err := resolveWorkDir(flags.workDir)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	merged, dotEnvPath, err := loadDotEnv(workDir, env)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	cfg, err := LoadConfig(LoadConfigInput{
		WorkDirOverride:  workDir,
		ConfigPath:       flags.configPath,
		CacheDirOverride: flags.cacheDir,
		LogLevelOverride: flags.logLevel,
		Env:              merged,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	cfg.Sources.DotEnv = dotEnvPath

	if name == "print-config" {
		code := PrintConfigCmd(&cfg).Run(ctx, o, cmdArgs)

		return finish(o, code)
	}

	logger, err := newLogger(errOut, cfg.LogLevel)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	defer func() { _ = logger.Sync() }()

	c, err := filecache.Open(filecache.Config{
		Dir:              cfg.CacheDirAbs,
		MinFreeBytes:     cfg.MinFreeBytes,
		FlushConcurrency: cfg.FlushConcurrency,
		LockDir:          cfg.LockDirEnabled(),
		Logger:           logger,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	code := commandFor(name, c, in, merged, sigCh).Run(ctx, o, cmdArgs)

	closeErr := c.Close()
	if closeErr != nil {
		fprintln(errOut, "error:", closeErr)

		code = 1
	}

	return finish(o, code)
}

func commandFor(name string, c *filecache.Cache, in io.Reader, env map[string]string, sigCh <-chan os.Signal) *Command {
	if name == "shell" {
		return ShellCmd(c, time.Now, in, env, sigCh)
	}

	return findCommand(cacheCommands(c, time.Now), name)
}

func finish(o *IO, code int) int {
	warnCode := o.Finish()
	if code != 0 {
		return code
	}

	return warnCode
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	var gf globalFlags

	set := flag.NewFlagSet("fcache", flag.ContinueOnError)
	set.SetInterspersed(false)
	set.SetOutput(io.Discard)

	set.StringVarP(&gf.workDir, "cwd", "C", "", "Run as if started in `dir`")
	set.StringVarP(&gf.configPath, "config", "c", "", "Use the given config `file`")
	set.StringVarP(&gf.cacheDir, "cache-dir", "d", "", "Use `dir` as the cache directory")
	set.StringVar(&gf.logLevel, "log-level", "", "Log `level`: debug, info, warn, error")
	set.BoolVarP(&gf.help, "help", "h", false, "Show help")

	err := set.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			gf.help = true

			return gf, nil
		}

		return globalFlags{}, err
	}

	if set.Changed("cache-dir") && gf.cacheDir == "" {
		return globalFlags{}, ErrCacheDirFlagEmpty
	}

	gf.remaining = set.Args()

	return gf, nil
}

// loadDotEnv reads workDir/.env and merges it under env. A missing file
// is not an error.
func loadDotEnv(workDir string, env map[string]string) (map[string]string, string, error) {
	path := filepath.Join(workDir, DotEnvFileName)

	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return env, "", nil
		}

		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}

	merged := make(map[string]string, len(vars)+len(env))

	for k, v := range vars {
		merged[k] = v
	}

	for k, v := range env {
		merged[k] = v
	}

	return merged, path, nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-h" || arg == helpFlag {
			return true
		}
	}

	return false
}

func printUsage(w io.Writer) {
	fprintln(w, `fcache - filesystem-backed key/value cache

Usage: fcache [options] <command> [args]

Global flags:
  -C, --cwd <dir>          Run as if started in <dir>
  -c, --config <file>      Use specified config file
  -d, --cache-dir <dir>    Override the cache directory
      --log-level <level>  Log level: debug, info, warn, error
  -h, --help               Show this help

Commands:`)

	cmds := cacheCommands(nil, time.Now)
	cmds = append(cmds, ShellCmd(nil, time.Now, nil, nil, nil), PrintConfigCmd(&Config{}))

	lines := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		lines = append(lines, cmd.HelpLine())
	}

	fprintln(w, strings.Join(lines, "\n"))
}
