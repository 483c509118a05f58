package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sempr/cptest/internal/config"
	"github.com/sempr/cptest/internal/judge"
	"github.com/sempr/cptest/pkg/models"
	"github.com/sempr/cptest/pkg/verdict"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

var testerArgs models.TesterArgs

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cptest <filename>",
	Short: "A tester for competitive programming solutions",
	Long: `cptest compiles a solution once, runs it against every input file in the
input directory and compares the output with the matching file in the
output directory. With --generate the program's output is written to the
output directory instead of being compared. With --checker an external
checker program decides correctness instead of file comparison.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		testerArgs.Filename = args[0]
		InitLogger(testerArgs.Verbose)
		return runTester(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&testerArgs.InDir, "in", "i", "in", "input directory")
	rootCmd.Flags().StringVar(&testerArgs.InExt, "in-ext", ".in", "input file extension")
	rootCmd.Flags().StringVarP(&testerArgs.OutDir, "out", "o", "out", "output directory")
	rootCmd.Flags().StringVar(&testerArgs.OutExt, "out-ext", ".out", "output file extension")
	rootCmd.Flags().StringVar(&testerArgs.IODir, "io", "", "input and output directory (sets --in and --out at once)")
	rootCmd.Flags().IntVarP(&testerArgs.Timeout, "timeout", "t", 5, "seconds after which a test times out")
	rootCmd.Flags().IntVar(&testerArgs.CompileTimeout, "compile-timeout", 10, "seconds after which compilation times out")
	rootCmd.Flags().StringVarP(&testerArgs.CompileCommand, "compile-command", "c",
		"g++ -std=c++17 -O3 -static <IN> -o <OUT>",
		"compile command; <IN> is the source file, <OUT> the executable output location")
	rootCmd.Flags().BoolVarP(&testerArgs.Sio2jail, "sio2jail", "s", false,
		"measure runtime and memory use through sio2jail (slower but accurate)")
	rootCmd.Flags().Uint64VarP(&testerArgs.MemoryLimit, "memory-limit", "m", 0,
		"memory limit in KiB; setting it always routes execution through sio2jail")
	rootCmd.Flags().BoolVarP(&testerArgs.Generate, "generate", "g", false,
		"write the program's output to the output directory instead of comparing")
	rootCmd.Flags().StringVar(&testerArgs.Checker, "checker", "",
		"checker program fed the test input and output, printing C to accept or N to reject")
	rootCmd.MarkFlagsMutuallyExclusive("generate", "checker")
	rootCmd.Flags().StringVar(&testerArgs.ConfigPath, "config", "", "path to a cptest.toml defaults file")
	rootCmd.Flags().BoolVar(&testerArgs.Verbose, "verbose", false, "enable debug logging")
}

func runTester(cmd *cobra.Command) error {
	fileCfg, err := config.Load(testerArgs.ConfigPath)
	if err != nil {
		return err
	}
	applyFileConfig(&testerArgs, fileCfg, cmd.Flags().Changed)

	if testerArgs.IODir != "" {
		if !cmd.Flags().Changed("in") {
			testerArgs.InDir = testerArgs.IODir
		}
		if !cmd.Flags().Changed("out") {
			testerArgs.OutDir = testerArgs.IODir
		}
	}

	opts := judge.Options{
		Filename:       testerArgs.Filename,
		InDir:          testerArgs.InDir,
		InExt:          testerArgs.InExt,
		OutDir:         testerArgs.OutDir,
		OutExt:         testerArgs.OutExt,
		Timeout:        time.Duration(testerArgs.Timeout) * time.Second,
		CompileTimeout: time.Duration(testerArgs.CompileTimeout) * time.Second,
		CompileCommand: testerArgs.CompileCommand,
		UseSandbox:     testerArgs.Sio2jail,
		MemoryLimitKB:  testerArgs.MemoryLimit,
		Generate:       testerArgs.Generate,
		CheckerPath:    testerArgs.Checker,
		Sio2jailPath:   fileCfg.Sio2jailPath,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	inv, err := judge.New(opts)
	if err != nil {
		return err
	}
	defer inv.Close()

	if err := inv.Compile(ctx); err != nil {
		return err
	}

	report, err := inv.Run(ctx)
	if err != nil {
		return err
	}

	printReport(report)
	if !report.Success() {
		return fmt.Errorf("%d of %d tests did not pass", report.Total-okCount(report), report.Total)
	}
	return nil
}

// applyFileConfig fills in defaults from the config file for every flag
// the user did not set explicitly.
func applyFileConfig(args *models.TesterArgs, cfg *config.FileConfig, changed func(string) bool) {
	if cfg.CompileCommand != "" && !changed("compile-command") {
		args.CompileCommand = cfg.CompileCommand
	}
	if cfg.Timeout > 0 && !changed("timeout") {
		args.Timeout = cfg.Timeout
	}
	if cfg.CompileTimeout > 0 && !changed("compile-timeout") {
		args.CompileTimeout = cfg.CompileTimeout
	}
	if cfg.InExt != "" && !changed("in-ext") {
		args.InExt = cfg.InExt
	}
	if cfg.OutExt != "" && !changed("out-ext") {
		args.OutExt = cfg.OutExt
	}
}

func okCount(report *models.RunReport) int {
	return report.Counts[verdict.Passed] + report.Counts[verdict.GenerateWritten]
}

func printReport(report *models.RunReport) {
	mode := "Testing"
	if report.GenerateMode {
		mode = "Generating"
	}

	extra := ""
	if report.SlowestCase != "" {
		extra = fmt.Sprintf(" (slowest test: %s at %.3fs", report.SlowestCase, report.SlowestTime.Seconds())
		if report.PeakMemKB >= 0 && report.PeakMemCase != "" {
			extra += fmt.Sprintf(", most memory used: %s at %dKiB", report.PeakMemCase, report.PeakMemKB)
		}
		extra += ")"
	}

	fmt.Printf("%s finished in %.2fs%s\n", mode, report.Elapsed.Seconds(), extra)
	fmt.Printf("Results: %s\n", report.FormatCounts())

	if len(report.Failures) > 0 {
		fmt.Println("Errors were found in the following tests:")
		for _, failure := range report.Failures {
			fmt.Printf("Test %s: %s\n", failure.Name, failure.Verdict)
			if failure.Detail != "" {
				fmt.Println(failure.Detail)
			}
		}
	}
}
