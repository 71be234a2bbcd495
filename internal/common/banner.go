package common

import (
	"fmt"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the application startup banner
func PrintBanner(cfg *Config, mode, logFile string) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(80)

	fmt.Printf("\n")

	b.PrintTopLine()
	b.PrintCenteredText("SERVICENOW TICKET EXTRACTOR")
	b.PrintCenteredText("DOM + REST Ticket Extraction to Excel")
	b.PrintSeparatorLine()

	b.PrintKeyValue("Version", GetVersion(), 15)
	b.PrintKeyValue("Build", GetBuild(), 15)
	b.PrintKeyValue("Environment", cfg.Extractor.Environment, 15)
	b.PrintKeyValue("Mode", mode, 15)
	instance := cfg.Instance.BaseURL
	if instance == "" {
		instance = "(not configured)"
	}
	b.PrintKeyValue("Instance", instance, 15)
	b.PrintBottomLine()

	fmt.Printf("\n")

	fmt.Printf("📋 Configuration:\n")
	fmt.Printf("   • Database: %s\n", cfg.Storage.DatabasePath)
	fmt.Printf("   • Export Dir: %s\n", cfg.Export.Directory)
	fmt.Printf("   • API Shapes: %s\n", strings.Join(cfg.API.Shapes, ", "))

	if logFile != "" {
		pattern := strings.Replace(logFile, ".log", ".{YYYY-MM-DDTHH-MM-SS}.log", 1)
		fmt.Printf("   • Log File: %s\n", pattern)
	}
	fmt.Printf("\n")
}

// PrintColorizedMessage prints a message with specified color
func PrintColorizedMessage(color, message string) {
	fmt.Printf("%s%s%s\n", color, message, banner.ColorReset)
}

// PrintSuccess prints a success message in green
func PrintSuccess(message string) {
	PrintColorizedMessage(banner.ColorGreen, fmt.Sprintf("✓ %s", message))
}

// PrintError prints an error message in red
func PrintError(message string) {
	PrintColorizedMessage(banner.ColorRed, fmt.Sprintf("✗ %s", message))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(message string) {
	PrintColorizedMessage(banner.ColorYellow, fmt.Sprintf("⚠ %s", message))
}

// PrintInfo prints an info message in cyan
func PrintInfo(message string) {
	PrintColorizedMessage(banner.ColorCyan, fmt.Sprintf("ℹ %s", message))
}
