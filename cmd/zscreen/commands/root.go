package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "zscreen",
	Short: "zscreen - 기술적 전략 종목 선정 및 백테스트",
	Long: `zscreen Unified CLI

일봉 데이터에 규칙 기반 전략을 적용해 종목을 선정하고,
선정 이후 N거래일 수익률로 전략 성과를 검증합니다.

Usage:
  go run ./cmd/zscreen [command]

Examples:
  go run ./cmd/zscreen select --date 2025-03-03
  go run ./cmd/zscreen batch --from 2025-01-01 --to 2025-03-31 --skip-existing
  go run ./cmd/zscreen report
  go run ./cmd/zscreen serve`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategies", "", "strategy config file (default: $STRATEGY_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
