package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var (
	runLanguage   string
	runCompileURL string
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Execute a file through the relay's compile endpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runLanguage, "language", "python3", "execution language")
	runCmd.Flags().StringVar(&runCompileURL, "compile-url", "http://localhost:8080/compile", "relay compile endpoint")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	code, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{
		"code":     string(code),
		"language": runLanguage,
	})
	if err != nil {
		return err
	}

	resp, err := http.Post(runCompileURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("compile request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Output string `json:"output"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if result.Error != "" {
		return fmt.Errorf("%s", result.Error)
	}

	fmt.Print(result.Output)
	return nil
}
