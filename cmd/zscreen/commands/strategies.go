package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wonny/zscreen/internal/strategies"
)

// strategiesCmd represents the strategies command
var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "내장 전략 및 기본 파라미터",
	Long: `설정 파일에서 사용할 수 있는 전략 이름과 기본 파라미터를 출력합니다.

Example:
  go run ./cmd/zscreen strategies`,
	RunE: runStrategies,
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}

func runStrategies(cmd *cobra.Command, args []string) error {
	catalog := strategies.Builtins()

	PrintHeader("zscreen Strategies")
	for _, name := range catalog.Names() {
		def, _ := catalog.Lookup(name)
		params, err := strategies.DefaultParams(def)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(params)
		if err != nil {
			return err
		}

		fmt.Printf("\n%s - %s\n", def.Name, def.Description)
		PrintSeparator()
		fmt.Print(string(out))
	}
	return nil
}
