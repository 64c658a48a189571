package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const configFileName = "schemalens.yml"

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a schemalens.yml configuration file",
		Long: `Interactively create a schemalens.yml in the current directory.

Prompts for the common settings; everything else is written with
defaults that can be edited later.`,
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	successColor := color.New(color.FgGreen, color.Bold)
	infoColor := color.New(color.FgCyan)
	promptColor := color.New(color.FgYellow)

	if _, err := os.Stat(configFileName); err == nil {
		overwrite := false
		prompt := &survey.Confirm{
			Message: configFileName + " already exists. Overwrite?",
			Default: false,
		}
		if err := survey.AskOne(prompt, &overwrite); err != nil {
			return err
		}
		if !overwrite {
			infoColor.Println("Keeping the existing configuration.")
			return nil
		}
	}

	questions := []*survey.Question{
		{
			Name: "outputDir",
			Prompt: &survey.Input{
				Message: "Output directory for schema documents:",
				Default: "schemas",
			},
			Validate: survey.Required,
		},
		{
			Name: "stagingDir",
			Prompt: &survey.Input{
				Message: "Staging directory for entity copies:",
				Default: "staging",
			},
			Validate: survey.Required,
		},
		{
			Name: "ledgerPath",
			Prompt: &survey.Input{
				Message: "Run ledger database path:",
				Default: "schemalens.db",
			},
			Validate: survey.Required,
		},
		{
			Name: "compress",
			Prompt: &survey.Confirm{
				Message: "Compress schema documents?",
				Default: false,
			},
		},
		{
			Name: "serverPort",
			Prompt: &survey.Input{
				Message: "Service port:",
				Default: "8080",
			},
		},
		{
			Name: "redisAddr",
			Prompt: &survey.Input{
				Message: "Redis address (empty for in-memory cache):",
				Default: "",
				Help:    "host:port of a Redis server used to cache served documents",
			},
		},
	}

	answers := struct {
		OutputDir  string
		StagingDir string
		LedgerPath string
		Compress   bool
		ServerPort string
		RedisAddr  string
	}{}

	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	port, err := strconv.Atoi(answers.ServerPort)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("invalid port: %s", answers.ServerPort)
	}

	content := renderConfigFile(answers.OutputDir, answers.StagingDir, answers.LedgerPath, answers.RedisAddr, port, answers.Compress)

	if err := os.WriteFile(configFileName, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", configFileName, err)
	}

	infoColor.Printf("  ✓ Created %s\n", configFileName)

	fmt.Println()
	successColor.Println("✓ SchemaLens configured")
	fmt.Println()

	promptColor.Println("Get started:")
	fmt.Println("  schemalens analyze <path-to-java-checkout>")
	fmt.Println("  schemalens runs list")
	fmt.Println("  schemalens serve")
	fmt.Println()

	return nil
}

// renderConfigFile produces the schemalens.yml content for the chosen
// settings, with the remaining keys spelled out at their defaults.
func renderConfigFile(outputDir, stagingDir, ledgerPath, redisAddr string, port int, compress bool) string {
	return fmt.Sprintf(`output:
  dir: %s
  compress: %t

staging:
  dir: %s
  enabled: false

analysis:
  concurrency: 0

server:
  host: 127.0.0.1
  port: %d
  workers: 4
  queue_size: 64

ledger:
  path: %s

cache:
  redis_addr: %q
  ttl: 5m
`, outputDir, compress, stagingDir, port, ledgerPath, redisAddr)
}
