package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mabhi256/jverify/internal/config"
	"github.com/mabhi256/jverify/internal/logging"
	"github.com/mabhi256/jverify/utils"
)

// errProblemsFound exits with status 1 without printing anything more
var errProblemsFound = errors.New("verification found problems")

var (
	configPath string
	conf       config.Config
	logger     logrus.FieldLogger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "jverify",
	Short: "Binary compatibility verifier for JVM plugins",
	Long: `jverify checks that the compiled classes of a plugin link against a host platform,
its dependencies and the JDK, reporting every unresolved class, method or field
and every access or inheritance rule the plugin breaks.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == cobra.ShellCompRequestCmd || cmd.Name() == cobra.ShellCompNoDescRequestCmd {
		return nil
	}

	flagConf, err := config.FromFlags(cmd.Flags())
	if err != nil {
		return err
	}
	conf, err = config.Consolidate(afero.NewOsFs(), configPath, os.LookupEnv, flagConf)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logging.New(logging.Options{
		Level:  conf.LogLevel.String,
		Format: conf.LogFormat.String,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	logger = l

	switch cmd.Name() {
	case "install", "version", "help":
		return nil
	}
	autoInstall(cmd)
	return nil
}

// autoInstall sets up completions on the first run; messages go to stderr so
// machine output on stdout stays clean
func autoInstall(cmd *cobra.Command) {
	if !isShellSupported() {
		return
	}

	if !completionsExist() {
		w := cmd.ErrOrStderr()
		fmt.Fprintln(w, "🔧 First run detected, setting up jverify...")
		if installCompletions(cmd.Root(), w) == nil {
			fmt.Fprintln(w, "✅ Shell completions installed")
			fmt.Fprintln(w, "💡 Restart your shell to enable tab completion")
		} else {
			fmt.Fprintln(w, "⚠️  Auto-setup failed. Run 'jverify install' to try again.")
		}
	}
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install shell completions",
	Run: func(cmd *cobra.Command, args []string) {
		if !isInPath() {
			printPathInstructions()
			return
		}

		if !isShellSupported() {
			fmt.Printf("❌ Shell completion not supported for: %s\n", detectShell())
			fmt.Println("Supported shells: bash, zsh, fish, powershell")
			return
		}

		if completionsExist() {
			fmt.Println("✅ Already configured!")
			return
		}

		fmt.Println("📦 Installing completions...")
		if err := installCompletions(cmd.Root(), cmd.OutOrStdout()); err != nil {
			fmt.Printf("❌ Failed: %v\n", err)
		} else {
			fmt.Println("✅ Done! Restart your shell to enable tab completion.")
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errProblemsFound) {
			fmt.Fprintln(os.Stderr, utils.CriticalStyle.Render("❌ "+err.Error()))
		}
		os.Exit(1)
	}
}

func GetRootCmd() *cobra.Command {
	return rootCmd
}

func completionPaths(home string) map[string]string {
	return map[string]string{
		"bash":       filepath.Join(home, ".local/share/bash-completion/completions/jverify"),
		"zsh":        filepath.Join(home, ".zsh/completions/_jverify"),
		"fish":       filepath.Join(home, ".config/fish/completions/jverify.fish"),
		"powershell": filepath.Join(home, "jverify_completion.ps1"),
	}
}

func completionsExist() bool {
	home, _ := os.UserHomeDir()
	path := completionPaths(home)[detectShell()]
	_, err := os.Stat(path)
	return err == nil
}

func isShellSupported() bool {
	_, ok := completionPaths("")[detectShell()]
	return ok
}

func detectShell() string {
	if runtime.GOOS == "windows" {
		return "powershell"
	}

	shell := os.Getenv("SHELL")
	if shell == "" {
		return "bash"
	}
	return filepath.Base(shell)
}

type completionConfig struct {
	genFunc     func(io.Writer) error
	activateCmd string
}

func installCompletions(rootCmd *cobra.Command, out io.Writer) error {
	home, _ := os.UserHomeDir()
	shell := detectShell()
	paths := completionPaths(home)

	configs := map[string]completionConfig{
		"bash": {
			genFunc:     rootCmd.GenBashCompletion,
			activateCmd: "source " + paths["bash"],
		},
		"zsh": {
			genFunc: rootCmd.GenZshCompletion,
			activateCmd: fmt.Sprintf("fpath=(%s $fpath) && autoload -U compinit && compinit",
				filepath.Dir(paths["zsh"])),
		},
		"fish": {
			genFunc:     func(w io.Writer) error { return rootCmd.GenFishCompletion(w, true) },
			activateCmd: "complete --do-complete=jverify",
		},
		"powershell": {
			genFunc:     rootCmd.GenPowerShellCompletionWithDesc,
			activateCmd: ". " + paths["powershell"],
		},
	}

	cc, ok := configs[shell]
	if !ok {
		return fmt.Errorf("unsupported shell: %s", shell)
	}

	path := paths[shell]
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create completion directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := cc.genFunc(file); err != nil {
		return err
	}

	fmt.Fprintf(out, "🔄 Running this command to enable auto-completions:\n")
	fmt.Fprintf(out, "   %s\n", cc.activateCmd)
	return nil
}

func isInPath() bool {
	execPath, err := os.Executable()
	if err != nil {
		return false
	}

	paths := strings.Split(os.Getenv("PATH"), string(os.PathListSeparator))
	return slices.Contains(paths, filepath.Dir(execPath))
}

func printPathInstructions() {
	execPath, _ := os.Executable()
	execDir := filepath.Dir(execPath)

	fmt.Printf("❌ jverify not in PATH. Binary location: %s\n\n", execPath)

	if runtime.GOOS == "windows" {
		fmt.Printf("Add to PATH: %s\n", execDir)
	} else {
		fmt.Printf("Add to shell profile: export PATH=\"%s:$PATH\"\n", execDir)
		fmt.Printf("Or copy to: /usr/local/bin\n")
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "jverify.json", "JSON configuration file")
	flags.AddFlagSet(config.FlagSet())

	rootCmd.RegisterFlagCompletionFunc("config", utils.CompleteFilesByExtension(".json"))
	rootCmd.RegisterFlagCompletionFunc("output", utils.CompleteValues("cli", "json", "tui"))
	rootCmd.RegisterFlagCompletionFunc("log-level", utils.CompleteValues("debug", "info", "warn", "error"))
	rootCmd.RegisterFlagCompletionFunc("log-format", utils.CompleteValues("text", "json", "raw"))
	rootCmd.RegisterFlagCompletionFunc("jdk", utils.CompleteFilesByExtension())
	rootCmd.RegisterFlagCompletionFunc("classpath", utils.CompleteFilesByExtension(".jar", ".zip", ".jmod", ".class"))
	rootCmd.RegisterFlagCompletionFunc("repository", utils.CompleteFilesByExtension())
	rootCmd.RegisterFlagCompletionFunc("store", utils.CompleteFilesByExtension(".db", ".sqlite"))

	rootCmd.AddCommand(installCmd)
}
