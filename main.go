package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aluedeke/go-ipaslice/pkg/ipa"
	"github.com/aluedeke/go-ipaslice/pkg/profile"
	"github.com/aluedeke/go-ipaslice/pkg/progress"
	"github.com/aluedeke/go-ipaslice/pkg/slicing"
	"github.com/aluedeke/go-ipaslice/pkg/toolexec"
	"github.com/docopt/docopt-go"
	"github.com/gookit/color"
	log "github.com/sirupsen/logrus"
)

const version = "1.0.0"

const usage = `go-ipaslice - iOS App Thinning Tool

Splits one universal IPA into per-device archives: one per architecture
and screen scale, each thinned, stripped of foreign image scales and
re-signed.

Usage:
  go-ipaslice slice <ipa> [--output=<dir>] [--keychain=<kc>] [--identity=<id>] [--p12=<path>] [--password=<password>] [--profile=<path>] [--matrix=<file>] [--native] [--verbose]
  go-ipaslice info <ipa> [--matrix=<file>]
  go-ipaslice -h | --help
  go-ipaslice --version

Commands:
  slice     Build one archive per architecture and scale
  info      Show the bundles, architectures and planned variants of an IPA

Options:
  --output=<dir>        Directory for the variant archives (defaults to <ipa dir>/output)
  --keychain=<kc>       Keychain holding the signing identity (or IPASLICE_KEYCHAIN, defaults to login.keychain)
  --identity=<id>       Signing identity, skips provisioning profile decoding (or IPASLICE_IDENTITY)
  --p12=<path>          Take the signing identity from a P12 certificate (or IPASLICE_P12)
  --password=<password> Password for the P12 certificate (or IPASLICE_PASSWORD)
  --profile=<path>      Provisioning profile to derive the identity from (defaults to the embedded one)
  --matrix=<file>       YAML variant matrix (defaults to armv7: 1x 2x, arm64: 2x 3x)
  --native              Thin, read entitlements and decode profiles without lipo/codesign -d/security
  --verbose             Log every tool invocation
  -h --help             Show this help message
  --version             Show version

Environment Variables:
  IPASLICE_KEYCHAIN     Keychain path (overridden by --keychain)
  IPASLICE_IDENTITY     Signing identity (overridden by --identity)
  IPASLICE_P12          Path to P12 certificate file (overridden by --p12)
  IPASLICE_PASSWORD     P12 certificate password (overridden by --password)

Examples:
  # Slice with the identity of the embedded provisioning profile
  go-ipaslice slice MyApp.ipa

  # Slice into a custom directory with a CI keychain
  go-ipaslice slice MyApp.ipa --output=dist --keychain=/tmp/ci.keychain

  # Only build arm64 variants
  go-ipaslice slice MyApp.ipa --matrix=arm64.yaml

  # Show what would be built
  go-ipaslice info MyApp.ipa
`

const defaultKeychain = "login.keychain"

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		os.Exit(1)
	}

	if slice, _ := opts.Bool("slice"); slice {
		if err := runSlice(opts); err != nil {
			fmt.Fprintln(os.Stderr, color.Danger.Sprintf("Error: %v", err))
			os.Exit(1)
		}
	} else if info, _ := opts.Bool("info"); info {
		if err := runInfo(opts); err != nil {
			fmt.Fprintln(os.Stderr, color.Danger.Sprintf("Error: %v", err))
			os.Exit(1)
		}
	}
}

func runSlice(opts docopt.Opts) error {
	inputPath, _ := opts.String("<ipa>")
	outputDir, _ := opts.String("--output")
	keychain, _ := opts.String("--keychain")
	identity, _ := opts.String("--identity")
	p12Path, _ := opts.String("--p12")
	password, _ := opts.String("--password")
	profilePath, _ := opts.String("--profile")
	native, _ := opts.Bool("--native")
	verbose, _ := opts.Bool("--verbose")

	// Get values from environment if not provided via flags
	if keychain == "" {
		keychain = os.Getenv("IPASLICE_KEYCHAIN")
	}
	if keychain == "" {
		keychain = defaultKeychain
	}
	if identity == "" {
		identity = os.Getenv("IPASLICE_IDENTITY")
	}
	if p12Path == "" {
		p12Path = os.Getenv("IPASLICE_P12")
	}
	if password == "" {
		password = os.Getenv("IPASLICE_PASSWORD")
	}
	if outputDir == "" {
		outputDir = filepath.Join(filepath.Dir(inputPath), "output")
	}

	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("cannot read input archive: %w", err)
	}

	matrix, err := loadMatrix(opts)
	if err != nil {
		return err
	}

	if identity == "" && p12Path != "" {
		p12Data, err := os.ReadFile(p12Path)
		if err != nil {
			return fmt.Errorf("failed to read P12 file: %w", err)
		}
		cert, err := profile.LoadCertificateIdentity(p12Data, password)
		if err != nil {
			return err
		}
		identity = cert.CommonName
		fmt.Printf("Using certificate: %s\n", p12Path)
		fmt.Printf("Team ID:           %s\n", cert.TeamID)
		fmt.Printf("Expires:           %s\n", cert.NotAfter)
	}

	logger := log.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	stream := progress.NewStream(progress.LogrusHandler(logger))
	gateway := toolexec.Logged{Gateway: toolexec.Exec{}, Logger: logger}

	pipeline := slicing.NewPipeline(gateway, slicing.Options{
		OutputDir:   outputDir,
		Keychain:    keychain,
		Matrix:      matrix,
		Identity:    identity,
		ProfilePath: profilePath,
		Native:      native,
	})
	pipeline.Sink = stream

	color.Info.Printf("Begin slicing %s\n", inputPath)
	outputs, err := pipeline.Run(inputPath)
	stream.Close()
	if err != nil {
		return err
	}

	color.Success.Printf("Finish slicing %s\n", inputPath)
	for _, out := range outputs {
		fmt.Printf("  %s\n", out)
	}
	return nil
}

func runInfo(opts docopt.Opts) error {
	inputPath, _ := opts.String("<ipa>")

	matrix, err := loadMatrix(opts)
	if err != nil {
		return err
	}

	tempDir, err := os.MkdirTemp("", "ipa-info-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	if err := ipa.Extract(inputPath, tempDir); err != nil {
		return fmt.Errorf("failed to extract IPA: %w", err)
	}
	appPath, err := ipa.FindAppBundle(tempDir)
	if err != nil {
		return fmt.Errorf("failed to find app bundle: %w", err)
	}

	bundleID, err := ipa.GetAppBundleID(appPath)
	if err != nil {
		return fmt.Errorf("failed to get bundle ID: %w", err)
	}

	fmt.Println("IPA Information")
	fmt.Println("===============")
	fmt.Printf("File:        %s\n", inputPath)
	fmt.Printf("App Name:    %s\n", strings.TrimSuffix(filepath.Base(appPath), ".app"))
	fmt.Printf("Bundle ID:   %s\n", bundleID)

	if data, err := os.ReadFile(filepath.Join(appPath, "embedded.mobileprovision")); err == nil {
		if p, err := profile.Parse(data); err == nil {
			fmt.Println()
			fmt.Println("Embedded Provisioning Profile")
			fmt.Println("-----------------------------")
			fmt.Printf("Name:           %s\n", p.Name)
			fmt.Printf("Team ID:        %s\n", p.GetTeamID())
			if id, err := p.Identity(); err == nil {
				fmt.Printf("Identity:       %s\n", id)
			}
			fmt.Printf("Expired:        %v\n", p.IsExpired())
			fmt.Printf("Expiration:     %s\n", p.ExpirationDate.Format("2006-01-02"))
			if certs, err := p.GetCertificates(); err == nil {
				fmt.Printf("Certificates:   %d\n", len(certs))
				for i, cert := range certs {
					fmt.Printf("  [%d] %s\n", i+1, cert.Subject.CommonName)
					fmt.Printf("      Expires: %s\n", cert.NotAfter.Format("2006-01-02"))
				}
			}
		}
	}

	reports, err := slicing.Inspect(tempDir)
	if err != nil {
		return fmt.Errorf("failed to inspect bundles: %w", err)
	}
	fmt.Println()
	fmt.Println("Executable Bundles")
	fmt.Println("------------------")
	for _, r := range reports {
		archs := strings.Join(r.Archs, ", ")
		if r.Err != nil {
			archs = color.Warn.Sprintf("unreadable: %v", r.Err)
		}
		fmt.Printf("  %s\n", r.RelPath)
		fmt.Printf("      Executable:    %s\n", filepath.Base(r.Bundle.Executable))
		fmt.Printf("      Architectures: %s\n", archs)
		for _, li := range r.LaunchImages {
			fmt.Printf("      Launch image:  %s %s\n", li.Name, li.Size)
		}
	}

	archive := slicing.NewArchive(inputPath)
	fmt.Println()
	fmt.Println("Planned Variants")
	fmt.Println("----------------")
	for _, spec := range matrix.Specs() {
		fmt.Printf("  %-10s -> %s\n", spec, archive.OutputName(spec))
	}

	encoded, err := matrix.Encode()
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println("Variant Matrix (--matrix format)")
	fmt.Println("--------------------------------")
	fmt.Print(string(encoded))

	return nil
}

func loadMatrix(opts docopt.Opts) (slicing.Matrix, error) {
	path, _ := opts.String("--matrix")
	if path == "" {
		return slicing.DefaultMatrix(), nil
	}
	return slicing.LoadMatrix(path)
}
