//go:build ignore

// build.go - subscription scraper build script
// Usage: go run build.go [-target=TARGET] [-v]
// Targets: all, scraper, server, export, clean, test

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const module = "github.com/Roshiii-8511/gainipo-subscription-scraper"

var (
	rootDir string
	distDir string

	// Executable names (key = cmd dir name, value = output name)
	executables = map[string]string{
		"scraper": "scraper",
		"server":  "server",
		"export":  "export",
	}

	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
)

func init() {
	cwd, err := os.Getwd()
	if err != nil {
		panic(fmt.Sprintf("Failed to get current directory: %v", err))
	}
	rootDir = cwd
	distDir = filepath.Join(rootDir, "dist")
}

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	version := flag.String("version", "0.1.0", "Version stamped into the binaries")
	flag.Parse()

	printHeader()
	startTime := time.Now()

	switch *target {
	case "all":
		for _, name := range []string{"scraper", "server", "export"} {
			buildExecutable(name, *version, *verbose)
		}
	case "scraper", "server", "export":
		buildExecutable(*target, *version, *verbose)
	case "clean":
		clean()
	case "test":
		runTests(*verbose)
	default:
		showHelp()
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Build completed in %s", time.Since(startTime).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println(colorCyan + "   IPO Subscription Scraper - Build       " + colorReset)
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println()
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

func printWarning(msg string) {
	fmt.Printf("%s[WARNING]%s %s\n", colorYellow, colorReset, msg)
}

func gitCommit() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		printWarning("git commit unavailable, stamping 'unknown'")
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

func buildExecutable(name, version string, verbose bool) {
	exeName, ok := executables[name]
	if !ok {
		printError(fmt.Sprintf("Unknown executable: %s", name))
		os.Exit(1)
	}
	if runtime.GOOS == "windows" {
		exeName += ".exe"
	}

	printInfo(fmt.Sprintf("Building %s...", name))

	outputPath := filepath.Join(distDir, exeName)
	pkg := module + "/pkg/contracts"
	ldflags := fmt.Sprintf("-s -w -X %s.Version=%s -X %s.BuildTime=%s -X %s.GitCommit=%s",
		pkg, version, pkg, time.Now().UTC().Format(time.RFC3339), pkg, gitCommit())

	args := []string{"build"}
	if verbose {
		args = append(args, "-v")
	}
	args = append(args, "-ldflags", ldflags, "-o", outputPath, "./cmd/"+name)

	cmd := exec.Command("go", args...)
	cmd.Dir = rootDir
	cmd.Stderr = os.Stderr
	if verbose {
		fmt.Printf("Running: go %s\n", strings.Join(args, " "))
		cmd.Stdout = os.Stdout
	}

	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Failed to build %s: %v", name, err))
		os.Exit(1)
	}

	if info, err := os.Stat(outputPath); err == nil {
		printSuccess(fmt.Sprintf("Built %s (%.1f MB)", exeName, float64(info.Size())/1024/1024))
	}
}

func clean() {
	printInfo("Cleaning build artifacts...")
	if err := os.RemoveAll(distDir); err != nil {
		printError(fmt.Sprintf("Failed to clean dist directory: %v", err))
		os.Exit(1)
	}
	printSuccess("Build artifacts cleaned")
}

func runTests(verbose bool) {
	printInfo("Running Go tests...")
	args := []string{"test", "-race"}
	if verbose {
		args = append(args, "-v")
	}
	args = append(args, "./...")

	cmd := exec.Command("go", args...)
	cmd.Dir = rootDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Go tests failed: %v", err))
		os.Exit(1)
	}
	printSuccess("All tests passed")
}

func showHelp() {
	fmt.Println("Usage: go run build.go [-target=TARGET] [-v] [-version=X.Y.Z]")
	fmt.Println()
	fmt.Println("Targets:")
	fmt.Println("  all      Build scraper, server and export into dist/")
	fmt.Println("  scraper  Build the polling scraper")
	fmt.Println("  server   Build the HTTP API server")
	fmt.Println("  export   Build the CSV/XLSX export tool")
	fmt.Println("  clean    Remove dist/")
	fmt.Println("  test     Run go test -race ./...")
}
