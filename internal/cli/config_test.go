package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/filecache/internal/cli"
)

// Tests for print-config command.

func Test_Print_Config_Defaults_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "cache_dir="+filepath.Join(c.Dir, ".fcache"))
	cli.AssertContains(t, stdout, "log_level=warn")
	cli.AssertContains(t, stdout, "lock_dir=true")
	cli.AssertContains(t, stdout, "(defaults only)")
}

func Test_Print_Config_Does_Not_Create_Cache_Dir_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("print-config")

	_, err := os.Stat(c.CacheDir())
	if !os.IsNotExist(err) {
		t.Fatalf("cache dir should not exist, stat err=%v", err)
	}
}

func Test_Print_Config_From_Config_File_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".fcache.json"), `{"cache_dir": "my-cache", "flush_concurrency": 4}`)

	stdout := c.MustRun("print-config")
	cli.AssertContains(t, stdout, "cache_dir="+filepath.Join(c.Dir, "my-cache"))
	cli.AssertContains(t, stdout, "flush_concurrency=4")
	cli.AssertContains(t, stdout, "project_config="+filepath.Join(c.Dir, ".fcache.json"))
}

func Test_Print_Config_From_Config_File_With_Comments_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".fcache.json"), `{
		// cache next to the build output
		"cache_dir": "commented-cache",
		"lock_dir": false,
	}`)

	stdout := c.MustRun("print-config")
	cli.AssertContains(t, stdout, "cache_dir="+filepath.Join(c.Dir, "commented-cache"))
	cli.AssertContains(t, stdout, "lock_dir=false")
}

func Test_Print_Config_Explicit_Config_Flag_When_Invoked(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name string
		args []string
	}{
		{name: "short flag", args: []string{"-c", "custom.json", "print-config"}},
		{name: "long flag with equals", args: []string{"--config=custom.json", "print-config"}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			writeFile(t, filepath.Join(c.Dir, "custom.json"), `{"cache_dir": "custom-dir"}`)

			stdout := c.MustRun(tt.args...)
			cli.AssertContains(t, stdout, "cache_dir="+filepath.Join(c.Dir, "custom-dir"))
		})
	}
}

func Test_Print_Config_Absolute_Cache_Dir_Is_Kept_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	abs := filepath.Join(t.TempDir(), "abs-cache")

	stdout := c.MustRun("-d", abs, "print-config")
	cli.AssertContains(t, stdout, "cache_dir="+abs)
}

// Tests for config errors.

func Test_Config_Explicit_Config_Not_Found_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("-c", "missing.json", "print-config")
	cli.AssertContains(t, stderr, "config file not found")
}

func Test_Config_Invalid_JSON_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".fcache.json"), `{invalid json}`)

	stderr := c.MustFail("print-config")
	cli.AssertContains(t, stderr, "invalid config file")
}

func Test_Config_Empty_Cache_Dir_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".fcache.json"), `{"cache_dir": ""}`)

	stderr := c.MustFail("print-config")
	cli.AssertContains(t, stderr, "cache_dir cannot be empty")
}

func Test_Config_Invalid_Log_Level_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("--log-level", "chatty", "print-config")
	cli.AssertContains(t, stderr, "invalid config file")
	cli.AssertContains(t, stderr, "LogLevel")
}

func Test_Config_Flush_Concurrency_Out_Of_Range_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".fcache.json"), `{"cache_dir": "x", "flush_concurrency": 5000}`)

	stderr := c.MustFail("print-config")
	cli.AssertContains(t, stderr, "FlushConcurrency")
}

func Test_Flags_Config_Requires_Argument_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("--config")
	cli.AssertContains(t, stderr, "flag needs an argument")
}

// Tests for -C/--cwd.

func Test_C_Flag_Changes_Work_Dir_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	subdir := filepath.Join(c.Dir, "sub")
	writeFile(t, filepath.Join(subdir, ".fcache.json"), `{"cache_dir": "sub-cache"}`)

	// The helper passes --cwd first; a later -C wins.
	stdout := c.MustRun("-C", subdir, "print-config")
	cli.AssertContains(t, stdout, "effective_cwd="+subdir)
	cli.AssertContains(t, stdout, "cache_dir="+filepath.Join(subdir, "sub-cache"))
}

func Test_Cwd_Flag_Long_With_Equals_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	subdir := filepath.Join(c.Dir, "eq")
	writeFile(t, filepath.Join(subdir, ".fcache.json"), `{"cache_dir": "eq-cache"}`)

	stdout := c.MustRun("--cwd="+subdir, "print-config")
	cli.AssertContains(t, stdout, "cache_dir="+filepath.Join(subdir, "eq-cache"))
}

// Tests for precedence.

func Test_Config_Precedence_CLI_Overrides_File_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".fcache.json"), `{"cache_dir": "from-file"}`)

	stdout := c.MustRun("--cache-dir=from-cli", "print-config")
	cli.AssertContains(t, stdout, "cache_dir="+filepath.Join(c.Dir, "from-cli"))
}

func Test_Config_Precedence_Explicit_Config_Overrides_Default_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".fcache.json"), `{"cache_dir": "from-default"}`)
	writeFile(t, filepath.Join(c.Dir, "explicit.json"), `{"cache_dir": "from-explicit"}`)

	stdout := c.MustRun("-c", "explicit.json", "print-config")
	cli.AssertContains(t, stdout, "cache_dir="+filepath.Join(c.Dir, "from-explicit"))
}

func Test_Config_Precedence_Env_Overrides_File_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".fcache.json"), `{"cache_dir": "from-file"}`)
	c.Env[cli.EnvCacheDir] = "from-env"

	stdout := c.MustRun("print-config")
	cli.AssertContains(t, stdout, "cache_dir="+filepath.Join(c.Dir, "from-env"))

	stdout = c.MustRun("-d", "from-cli", "print-config")
	cli.AssertContains(t, stdout, "cache_dir="+filepath.Join(c.Dir, "from-cli"))
}

func Test_Config_Global_Config_Loaded_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	xdgDir := t.TempDir()

	writeFile(t, filepath.Join(xdgDir, "fcache", "config.json"), `{"log_level": "debug", "min_free_bytes": 1024}`)

	c.Env["XDG_CONFIG_HOME"] = xdgDir
	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "log_level=debug")
	cli.AssertContains(t, stdout, "min_free_bytes=1024")
	cli.AssertContains(t, stdout, "global_config="+filepath.Join(xdgDir, "fcache", "config.json"))
}

func Test_Config_Global_Config_From_Home_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Env["HOME"], ".config", "fcache", "config.json"), `{"cache_dir": "home-cache"}`)

	stdout := c.MustRun("print-config")
	cli.AssertContains(t, stdout, "cache_dir="+filepath.Join(c.Dir, "home-cache"))
}

func Test_Config_Global_Config_Invalid_JSON_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	xdgDir := t.TempDir()

	writeFile(t, filepath.Join(xdgDir, "fcache", "config.json"), `{invalid json}`)

	c.Env["XDG_CONFIG_HOME"] = xdgDir
	stderr := c.MustFail("print-config")
	cli.AssertContains(t, stderr, "invalid")
}

func Test_Config_Precedence_Project_Overrides_Global_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	xdgDir := t.TempDir()

	writeFile(t, filepath.Join(xdgDir, "fcache", "config.json"), `{"cache_dir": "global-cache", "log_level": "info"}`)
	writeFile(t, filepath.Join(c.Dir, ".fcache.json"), `{"cache_dir": "project-cache"}`)

	c.Env["XDG_CONFIG_HOME"] = xdgDir
	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "cache_dir="+filepath.Join(c.Dir, "project-cache"))
	cli.AssertContains(t, stdout, "log_level=info")
}

// Tests for .env loading.

func Test_DotEnv_Sets_Cache_Dir_When_Present(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".env"), "FCACHE_DIR=dotenv-cache\n")

	stdout := c.MustRun("print-config")
	cli.AssertContains(t, stdout, "cache_dir="+filepath.Join(c.Dir, "dotenv-cache"))
	cli.AssertContains(t, stdout, "dotenv="+filepath.Join(c.Dir, ".env"))
}

func Test_DotEnv_Loses_To_Real_Environment_When_Both_Set(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".env"), "FCACHE_DIR=dotenv-cache\n")
	c.Env[cli.EnvCacheDir] = "env-cache"

	stdout := c.MustRun("print-config")
	cli.AssertContains(t, stdout, "cache_dir="+filepath.Join(c.Dir, "env-cache"))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	err = os.WriteFile(path, []byte(content), 0o600)
	if err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}
